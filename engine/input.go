package engine

import (
	"context"
	"image"
	"sync"

	"github.com/mogaika/moiety/config"
	"github.com/mogaika/moiety/script"
)

// cursorState is the cursor a script asked for plus the busy override
// shown while a slow mouse-down handler runs.
type cursorState struct {
	mu   sync.Mutex
	id   int
	busy bool
}

func (c *cursorState) Set(id int) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

func (c *cursorState) SetBusy(busy bool) {
	c.mu.Lock()
	c.busy = busy
	c.mu.Unlock()
}

func (c *cursorState) Shown() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return config.BusyCursor
	}
	return c.id
}

func (s *Session) Cursor() int {
	return s.cursor.Shown()
}

// PointerBusy reports whether a mouse-down handler is still running.
func (s *Session) PointerBusy() bool {
	return s.busy.Load()
}

// hotspotAt returns the index of the topmost enabled hotspot containing p.
// Later entries are above earlier ones.
func (s *Session) hotspotAt(p image.Point) int {
	if s.card == nil {
		return -1
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hs := s.card.hotspots
	for i := len(hs) - 1; i >= 0; i-- {
		if hs[i].Enabled && hs[i].Contains(p) {
			return i
		}
	}
	return -1
}

func (s *Session) hotspotScript(i int) script.Script {
	if s.card == nil || i < 0 || i >= len(s.card.hotspots) {
		return nil
	}
	return s.card.hotspots[i].Script
}

func (s *Session) generationNow() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// MouseMove updates the current hotspot, running mouse-leave and
// mouse-enter when it changes and mouse-within on the hotspot under p.
func (s *Session) MouseMove(ctx context.Context, p image.Point) error {
	idx := s.hotspotAt(p)
	gen := s.generationNow()
	if idx != s.current {
		old := s.current
		s.mu.Lock()
		s.current = idx
		s.mu.Unlock()

		if old >= 0 {
			if err := s.runHandler(ctx, s.hotspotScript(old), script.MouseLeave); err != nil {
				return err
			}
			if s.superseded(gen) {
				return nil
			}
		}
		if idx >= 0 {
			cursor := s.card.hotspots[idx].Cursor
			if cursor == 0 {
				cursor = config.DefaultCursor
			}
			s.cursor.Set(cursor)
			if err := s.runHandler(ctx, s.hotspotScript(idx), script.MouseEnter); err != nil {
				return err
			}
			if s.superseded(gen) {
				return nil
			}
		} else {
			s.cursor.Set(config.DefaultCursor)
		}
	}
	if idx >= 0 {
		return s.runHandler(ctx, s.hotspotScript(idx), script.MouseWithin)
	}
	return nil
}

// MouseDown runs mouse-down on the hotspot under p. Until both the handler
// and the grace delay have finished, PointerBusy is set; if the handler
// outlasts the delay the busy cursor is shown meanwhile.
func (s *Session) MouseDown(ctx context.Context, p image.Point) error {
	idx := s.hotspotAt(p)
	if idx < 0 {
		return nil
	}
	s.busy.Store(true)
	defer s.busy.Store(false)

	grace := s.clock.After(config.MouseDownGrace)
	handlerDone := make(chan struct{})
	graceDone := make(chan struct{})
	go func() {
		defer close(graceDone)
		select {
		case <-grace:
			select {
			case <-handlerDone:
			default:
				s.cursor.SetBusy(true)
			}
		case <-ctx.Done():
		}
	}()

	err := s.runHandler(ctx, s.hotspotScript(idx), script.MouseDown)
	close(handlerDone)
	<-graceDone
	s.cursor.SetBusy(false)
	return err
}

func (s *Session) MouseUp(ctx context.Context, p image.Point) error {
	idx := s.hotspotAt(p)
	if idx < 0 {
		return nil
	}
	return s.runHandler(ctx, s.hotspotScript(idx), script.MouseUp)
}
