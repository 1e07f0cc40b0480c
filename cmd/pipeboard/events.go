package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/shutdown"
	"github.com/npratt/pipeboard/internal/stream"
)

const eventsShutdownTimeout = 5 * time.Second

func newEventsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events [project-id]",
		Short: "Follow a project's live events until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			if a.cfg.Stream.BaseURL == "" {
				return errors.New("live events are disabled: set stream.base_url or --stream-url")
			}

			s := a.newSession(notify.Discard)
			defer s.Close()

			// Handlers run on the stream goroutine; keep output lines whole.
			var mu sync.Mutex
			sub := s.Stream.On(stream.Wildcard, func(ev stream.Event) {
				mu.Lock()
				defer mu.Unlock()
				if a.jsonOutput() {
					printEventJSON(a, ev)
					return
				}
				_, _ = fmt.Fprintln(a.stdout, describeEvent(ev))
			})
			defer sub.Unsubscribe()

			cancel := s.Stream.OnStateChange(func(st stream.State) {
				a.logger.Info("stream state changed", "project_id", id, "state", st.String())
			})
			defer cancel()

			return shutdown.RunWithGracefulShutdown(cmd.Context(), a.logger, eventsShutdownTimeout,
				func(ctx context.Context) error {
					if err := s.Watch(ctx, id); err != nil {
						return err
					}
					<-ctx.Done()
					return ctx.Err()
				},
				func(context.Context) error {
					s.Unwatch()
					return nil
				},
			)
		},
	}
}

func printEventJSON(a *app, ev stream.Event) {
	if u, ok := ev.(*stream.UnknownEvent); ok && len(u.Raw) > 0 {
		_, _ = fmt.Fprintln(a.stdout, string(u.Raw))
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		a.logger.Warn("failed to encode event", "type", ev.Type(), "error", err)
		return
	}
	_, _ = fmt.Fprintln(a.stdout, string(data))
}

// describeEvent renders one event as a single human-readable line.
func describeEvent(ev stream.Event) string {
	switch e := ev.(type) {
	case *stream.StateTransitionEvent:
		line := fmt.Sprintf("%s  %s -> %s", e.EventType, orDash(e.FromState), e.ToState)
		if e.Reason != "" {
			line += " (" + e.Reason + ")"
		}
		return stamp(e.Timestamp, line)
	case *stream.AgentCompletedEvent:
		return stamp(e.Timestamp, fmt.Sprintf("%s  %s completed (task %s)", e.EventType, e.Agent, orDash(e.TaskID)))
	case *stream.AgentFailedEvent:
		return stamp(e.Timestamp, fmt.Sprintf("%s  %s failed: %s", e.EventType, e.Agent, e.Error))
	case *stream.UnknownEvent:
		return stamp(e.Timestamp, string(e.EventType))
	default:
		return string(ev.Type())
	}
}

func stamp(ts, line string) string {
	if ts == "" {
		return line
	}
	return ts + "  " + line
}
