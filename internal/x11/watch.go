package x11

import (
	"context"
	"time"
)

// EventType classifies a topology change.
type EventType int

const (
	// EventAttach reports a newly connected output.
	EventAttach EventType = iota
	// EventDetach reports a disconnected output.
	EventDetach
	// EventChange reports an output whose active geometry changed.
	EventChange
)

// Event is one observed topology change.
type Event struct {
	Type   EventType
	Output Output
}

// Watch polls the output topology and emits attach/detach/change events
// until ctx is canceled. The channel is closed on return. RandR can deliver
// change notifications over the event socket, but polling keeps the watcher
// usable alongside xgbutil's own event loop ownership.
func (c *Connection) Watch(ctx context.Context, interval time.Duration) <-chan Event {
	ch := make(chan Event)

	go func() {
		defer close(ch)

		known := make(map[string]Output)
		if outs, err := c.Outputs(); err == nil {
			for _, o := range outs {
				known[o.Name] = o
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			outs, err := c.Outputs()
			if err != nil {
				continue
			}

			seen := make(map[string]bool, len(outs))
			for _, o := range outs {
				seen[o.Name] = true
				prev, ok := known[o.Name]
				switch {
				case !ok:
					known[o.Name] = o
					if !emit(ctx, ch, Event{Type: EventAttach, Output: o}) {
						return
					}
				case prev.Width != o.Width || prev.Height != o.Height ||
					prev.X != o.X || prev.Y != o.Y || prev.RefreshHz != o.RefreshHz:
					known[o.Name] = o
					if !emit(ctx, ch, Event{Type: EventChange, Output: o}) {
						return
					}
				}
			}
			for name, o := range known {
				if !seen[name] {
					delete(known, name)
					if !emit(ctx, ch, Event{Type: EventDetach, Output: o}) {
						return
					}
				}
			}
		}
	}()

	return ch
}

func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
