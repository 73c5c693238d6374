// Package gmail is the message source: it lists and fetches Gmail
// messages using google.golang.org/api/gmail/v1 and reduces them to the
// fields the pipeline needs.
package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gm "google.golang.org/api/gmail/v1"

	"github.com/mailsift/mailsift/internal/extract"
	"github.com/mailsift/mailsift/internal/types"
)

// pageSize caps each messages.list request; listing pages until the
// caller's max is satisfied or the provider runs out of pages.
const pageSize = 100

// Source wraps an authenticated Gmail service for one account.
type Source struct {
	svc *gm.Service
	log *slog.Logger
}

// NewSource wraps svc. A nil logger falls back to slog.Default.
func NewSource(svc *gm.Service, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{svc: svc, log: log}
}

// List returns up to maxResults message IDs matching query, in the
// provider's native (most-recent-first) order, paging with
// nextPageToken as needed.
//
// This is a best-effort collector: a page-level failure stops paging
// but whatever accumulated so far is returned, so the caller always
// gets current knowledge rather than an error. IDs are unique across
// pages; a page that yields no new IDs also ends the loop, so a
// misbehaving provider repeating itself cannot spin this forever.
func (s *Source) List(ctx context.Context, query string, maxResults int64) []string {
	if maxResults < 1 {
		maxResults = 1
	}

	var ids []string
	seen := make(map[string]struct{})
	pageToken := ""

	for int64(len(ids)) < maxResults {
		remaining := maxResults - int64(len(ids))
		call := s.svc.Users.Messages.List("me").
			MaxResults(min(remaining, pageSize)).
			Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			s.log.Warn("list messages failed, returning partial results",
				"accumulated", len(ids), "error", err)
			break
		}
		if len(resp.Messages) == 0 {
			break
		}

		added := 0
		for _, m := range resp.Messages {
			if m.Id == "" {
				continue
			}
			if _, ok := seen[m.Id]; ok {
				continue
			}
			seen[m.Id] = struct{}{}
			ids = append(ids, m.Id)
			added++
		}
		if added == 0 {
			// A page of nothing but known IDs means the provider is not
			// advancing; stop rather than page forever.
			s.log.Warn("list page contributed no new ids, stopping",
				"accumulated", len(ids))
			break
		}

		if int64(len(ids)) >= maxResults || resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	if int64(len(ids)) > maxResults {
		ids = ids[:maxResults]
	}
	return ids
}

// Fetch retrieves one full message and extracts the header fields and
// plaintext body.
func (s *Source) Fetch(ctx context.Context, id string) (*types.Message, error) {
	msg, err := s.svc.Users.Messages.Get("me", id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}

	headers := headerMap(msg.Payload)

	return &types.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Date:     internalDateISO(msg.InternalDate),
		Sender:   headers["from"],
		Subject:  headers["subject"],
		Body:     extract.Plaintext(msg.Payload),
	}, nil
}

// headerMap flattens payload headers into a lowercase-keyed map.
func headerMap(payload *gm.MessagePart) map[string]string {
	m := make(map[string]string)
	if payload == nil {
		return m
	}
	for _, h := range payload.Headers {
		m[strings.ToLower(h.Name)] = h.Value
	}
	return m
}

// internalDateISO converts Gmail's internalDate (ms since epoch) to a
// UTC calendar date string, empty when absent or malformed.
func internalDateISO(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}
