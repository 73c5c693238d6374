// Package extract converts Gmail message payloads into plaintext.
//
// Classifying snippets or raw HTML hurts model quality, so the full body
// structure is walked and normalized into clean text before classification.
package extract

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	gm "google.golang.org/api/gmail/v1"
)

var (
	// brRe and tagRe serve only StripHTML's regex fallback;
	// whitespaceRe also collapses the goquery-extracted text.
	brRe         = regexp.MustCompile(`(?i)<\s*br\s*/?>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Plaintext extracts the best plaintext body from a message payload.
//
// Preference order:
//  1. text/plain parts, concatenated with blank lines
//  2. text/html parts, concatenated then stripped to text
//  3. body data attached directly to the root payload
//
// Attachment references without inline data are skipped; they are never
// fetched here. Decode failures degrade to empty or partial text — this
// function never fails.
func Plaintext(payload *gm.MessagePart) string {
	if payload == nil {
		return ""
	}

	var plainChunks, htmlChunks []string

	for _, part := range gatherParts(payload) {
		mime := strings.ToLower(part.MimeType)
		body := part.Body
		if body == nil {
			continue
		}
		if body.Data == "" {
			// Attachment reference only; skip.
			continue
		}

		raw := decodeBase64URL(body.Data)
		if raw == "" {
			continue
		}

		switch {
		case strings.HasPrefix(mime, "text/plain"):
			if c := strings.TrimSpace(raw); c != "" {
				plainChunks = append(plainChunks, c)
			}
		case strings.HasPrefix(mime, "text/html"):
			htmlChunks = append(htmlChunks, raw)
		}
	}

	if len(plainChunks) > 0 {
		return strings.TrimSpace(strings.Join(plainChunks, "\n\n"))
	}

	if len(htmlChunks) > 0 {
		return StripHTML(strings.Join(htmlChunks, "\n\n"))
	}

	// Last resort: decode whatever data sits on the root payload.
	if payload.Body != nil && payload.Body.Data != "" {
		return strings.TrimSpace(decodeBase64URL(payload.Body.Data))
	}

	return ""
}

// gatherParts yields the payload and all nested parts depth-first in
// structural order.
func gatherParts(payload *gm.MessagePart) []*gm.MessagePart {
	var out []*gm.MessagePart
	stack := []*gm.MessagePart{payload}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p == nil {
			continue
		}
		out = append(out, p)
		for i := len(p.Parts) - 1; i >= 0; i-- {
			stack = append(stack, p.Parts[i])
		}
	}
	return out
}

// StripHTML converts markup to plain text: line breaks become newlines,
// remaining tags are dropped, and all runs of whitespace collapse to
// single spaces.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// html.Parse is tolerant, so this is nearly unreachable; fall
		// back to a regex strip rather than dropping the content.
		text := brRe.ReplaceAllString(html, "\n")
		text = tagRe.ReplaceAllString(text, " ")
		return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	}

	doc.Find("script, style, head, meta, link").Remove()
	doc.Find("br, p, div, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := doc.Text()
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// decodeBase64URL decodes Gmail's URL-safe base64 content. The input is
// right-padded with '=' to a multiple of 4 first; on a corrupt input the
// bytes decoded so far are returned instead of an error.
func decodeBase64URL(data string) string {
	if pad := len(data) % 4; pad != 0 {
		data += strings.Repeat("=", 4-pad)
	}
	decoded, _ := base64.URLEncoding.DecodeString(data)
	return string(decoded)
}
