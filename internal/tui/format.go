package tui

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
)

const truncateIndicator = "..."

// Display layouts for timestamps.
const (
	dateLayout     = "Jan 2, 2006"
	dateTimeLayout = "Jan 2, 2006 3:04 PM"
)

// formatDate renders t as a long date, or "-" for the zero time.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

// formatDateTime renders t as a date with time of day.
func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateTimeLayout)
}

// formatRelative renders t relative to now, e.g. "3 minutes ago".
func formatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// formatDuration renders a duration the way audit entries show it:
// milliseconds below a second, then seconds, minutes and hours.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}

// formatBytes renders a size with binary units.
func formatBytes(n int) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// formatPercentage renders v (0-100) rounded to a whole percent.
func formatPercentage(v float64) string {
	return fmt.Sprintf("%.0f%%", v)
}

// formatDays renders a plan duration in days.
func formatDays(days float64) string {
	if days == float64(int(days)) {
		return fmt.Sprintf("%d days", int(days))
	}
	return fmt.Sprintf("%.1f days", days)
}

// truncate shortens text to maxLen runes, adding indicator if truncated.
func truncate(s string, maxLen int) string {
	s = safeString(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	return string(r[:maxLen-len(truncateIndicator)]) + truncateIndicator
}

// safeString sanitizes a string for single-line display by removing control
// characters and collapsing whitespace.
func safeString(s string) string {
	s = stripANSI(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
