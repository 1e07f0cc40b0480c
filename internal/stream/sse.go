package stream

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxFrameLine bounds a single SSE line.
const maxFrameLine = 1024 * 1024

// frame is one dispatched server-sent event.
type frame struct {
	ID      string
	Event   string
	Data    string
	HasData bool
	Retry   time.Duration
}

// readFrames parses an SSE byte stream, calling fn for each complete frame.
// Frames that only carry an id or retry hint are passed on with HasData unset.
// It returns the scanner error, or nil at EOF.
func readFrames(r io.Reader, fn func(frame)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameLine)

	var (
		cur     frame
		data    []string
		hasData bool
	)
	flush := func() {
		if hasData || cur.ID != "" || cur.Retry > 0 {
			cur.Data = strings.Join(data, "\n")
			cur.HasData = hasData
			fn(cur)
		}
		cur = frame{}
		data = data[:0]
		hasData = false
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			cur.Event = value
		case "id":
			if !strings.Contains(value, "\x00") {
				cur.ID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				cur.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	return scanner.Err()
}
