// Package display provides terminal formatting for mailsift output.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mailsift/mailsift/internal/types"
)

var (
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2563eb"))
)

// CategoryBadge renders the two ranked categories of a record.
func CategoryBadge(categories []string) string {
	if len(categories) == 0 {
		return Dim.Render("unclassified")
	}
	return categoryStyle.Render(strings.Join(categories, " · "))
}

// Truncate shortens a string to maxLen, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// TimeAgo formats an ISO date string as a relative time.
func TimeAgo(isoDate string) string {
	if isoDate == "" {
		return ""
	}

	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02", time.RFC3339Nano} {
		t, err = time.Parse(layout, isoDate)
		if err == nil {
			break
		}
	}
	if err != nil {
		return isoDate[:min(10, len(isoDate))]
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// Record prints one classified email as a compact block.
func Record(rec types.EmailRecord) {
	fmt.Printf("%s  %s\n", Bold.Render(Truncate(rec.Subject, 70)), Dim.Render(TimeAgo(rec.Date)))
	fmt.Printf("  %s %s\n", Muted.Render("from"), rec.Sender)
	fmt.Printf("  %s %s\n", Muted.Render("cats"), CategoryBadge(rec.Categories))
	if body := strings.TrimSpace(rec.Body); body != "" {
		line := strings.SplitN(body, "\n", 2)[0]
		fmt.Printf("  %s\n", Dim.Render(Truncate(line, 90)))
	}
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	fmt.Println(Success.Render("✓") + " " + fmt.Sprintf(format, args...))
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}
