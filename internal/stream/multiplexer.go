package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/model"
)

var ErrUnknownOrigin = errors.New("unknown stream origin")

type Config struct {
	// Limit is the client-facing batch size; each poll fetches twice as many.
	Limit        int
	WindowSize   int
	ErrorBackoff time.Duration
}

// Multiplexer fans polled store events out to independent subscribers.
// Every subscription owns its poll loops and dedup windows, so subscribers
// never share state or block one another.
type Multiplexer struct {
	sources map[model.Origin]Source
	order   []model.Origin
	cfg     Config
}

func NewMultiplexer(cfg Config, sources ...Source) *Multiplexer {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 500
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}

	m := &Multiplexer{sources: make(map[model.Origin]Source, len(sources)), cfg: cfg}
	for _, s := range sources {
		if _, dup := m.sources[s.Origin()]; !dup {
			m.order = append(m.order, s.Origin())
		}
		m.sources[s.Origin()] = s
	}
	return m
}

// Origins lists the configured origins in registration order.
func (m *Multiplexer) Origins() []model.Origin {
	return append([]model.Origin(nil), m.order...)
}

// Subscribe starts one poll loop per origin (all origins when none are given)
// and returns their merged events. The channel closes after ctx is cancelled
// and every loop has exited.
func (m *Multiplexer) Subscribe(ctx context.Context, origins ...model.Origin) (<-chan model.StreamEvent, error) {
	if len(origins) == 0 {
		origins = m.order
	}

	selected := make([]Source, 0, len(origins))
	seen := make(map[model.Origin]bool, len(origins))
	for _, o := range origins {
		src, ok := m.sources[o]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOrigin, o)
		}
		if seen[o] {
			continue
		}
		seen[o] = true
		selected = append(selected, src)
	}

	out := make(chan model.StreamEvent)

	var wg sync.WaitGroup
	for _, src := range selected {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			m.poll(ctx, src, out)
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (m *Multiplexer) poll(ctx context.Context, src Source, out chan<- model.StreamEvent) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.stream"})

	window := NewSeenWindow(m.cfg.WindowSize)
	wait := time.Duration(0)

	for {
		if err := sleep(ctx, wait); err != nil {
			return
		}

		events, err := src.Fetch(ctx, 2*m.cfg.Limit)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.WarnContext(ctx, "stream poll failed, backing off",
				"origin", src.Origin(),
				"error", err,
				"backoff", m.cfg.ErrorBackoff)
			wait = m.cfg.ErrorBackoff
			continue
		}
		wait = src.Interval()

		batch := make(map[string]bool, len(events))
		for _, ev := range events {
			if window.Contains(ev.SourceID) || batch[ev.SourceID] {
				continue
			}
			batch[ev.SourceID] = true

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			window.Add(ev.SourceID)
		}
	}
}

// Snapshot returns the newest events of one origin without dedup state.
func (m *Multiplexer) Snapshot(ctx context.Context, origin model.Origin, limit int) ([]model.StreamEvent, error) {
	src, ok := m.sources[origin]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrigin, origin)
	}
	if limit <= 0 {
		limit = m.cfg.Limit
	}
	return src.Fetch(ctx, limit)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
