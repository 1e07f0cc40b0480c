package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/npratt/pipeboard/internal/cache"
	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/stream"
)

const devtoolsNotesShown = 5

// devtoolsData is what the inspector shows.
type devtoolsData struct {
	entries  []cache.Snapshot
	watching string
	state    stream.State
	notes    []notify.Notification
}

func (m model) devtoolsData() devtoolsData {
	d := devtoolsData{
		entries:  m.session.Cache.Entries(),
		watching: m.session.Watching(),
		state:    m.streamState,
	}
	if m.bridge != nil && m.bridge.history != nil {
		d.notes = m.bridge.history()
	}
	return d
}

// renderDevtools lists every cache entry with its bookkeeping, the live
// stream and the latest notifications.
func renderDevtools(d devtoolsData, now time.Time, width, height int) string {
	var b strings.Builder

	live := "not watching"
	if d.watching != "" {
		live = fmt.Sprintf("watching %s (%s)", d.watching, d.state)
	}
	b.WriteString(styles.Label.Render("Live stream: ") + styles.Value.Render(live))
	b.WriteString("\n\n")

	b.WriteString(styles.Heading.Render(fmt.Sprintf("Cache inspector (%d entries)", len(d.entries))))
	b.WriteString("\n")

	keyWidth := max(16, width-44)
	header := fmt.Sprintf("%-*s %-8s %4s %5s %4s %s", keyWidth, "KEY", "STATUS", "VER", "STALE", "REFS", "UPDATED")
	b.WriteString(styles.Label.Render(header))
	b.WriteString("\n")

	if len(d.entries) == 0 {
		b.WriteString(styles.Muted.Render("empty"))
		b.WriteString("\n")
	}

	notes := d.notes
	if len(notes) > devtoolsNotesShown {
		notes = notes[len(notes)-devtoolsNotesShown:]
	}
	visible := max(1, height-10-len(notes))
	for i, e := range d.entries {
		if i >= visible {
			b.WriteString(styles.Muted.Render(fmt.Sprintf("... %d more", len(d.entries)-visible)))
			b.WriteString("\n")
			break
		}
		stale := ""
		if e.Stale {
			stale = "yes"
		}
		updated := "-"
		if !e.UpdatedAt.IsZero() {
			updated = formatDuration(now.Sub(e.UpdatedAt).Truncate(time.Millisecond)) + " ago"
		}
		line := fmt.Sprintf("%-*s %-8s %4d %5s %4d %s",
			keyWidth, truncate(e.Key.String(), keyWidth), e.Status, e.Version, stale, e.Refs, updated)

		style := styles.Value
		switch {
		case e.Status == cache.StatusError:
			style = styles.Error
		case e.Stale:
			style = styles.Warning
		case e.Refs == 0:
			style = styles.Muted
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Heading.Render(fmt.Sprintf("Notifications (%d)", len(d.notes))))
	b.WriteString("\n")
	if len(notes) == 0 {
		b.WriteString(styles.Muted.Render("none"))
		b.WriteString("\n")
	}
	// Newest first.
	for i := len(notes) - 1; i >= 0; i-- {
		n := notes[i]
		line := fmt.Sprintf("%-8s %s  %s", n.Level, truncate(n.Message, max(10, width-24)), formatRelative(n.Time, now))
		if n.Suppressed {
			line += " (throttled)"
		}
		b.WriteString(styleForNotification(n.Level).Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Footer.Render("D/esc: close"))
	return b.String()
}
