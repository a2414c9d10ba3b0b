package engine

import (
	"context"
	"image"
	"log"

	"github.com/pkg/errors"
)

type EventKind int

const (
	EventMove EventKind = iota
	EventDown
	EventUp
	EventGoto
)

func (k EventKind) String() string {
	switch k {
	case EventMove:
		return "move"
	case EventDown:
		return "down"
	case EventUp:
		return "up"
	case EventGoto:
		return "goto"
	}
	return "unknown"
}

func (k EventKind) pointer() bool {
	return k != EventGoto
}

type Event struct {
	Kind  EventKind
	Point image.Point
	Stack string
	Card  int

	// Result, when set, receives the outcome once the event is handled.
	Result chan error
}

var ErrDropped = errors.New("event dropped")

// Player owns a Session and handles its events one at a time on the
// goroutine running Run.
type Player struct {
	session *Session
	events  chan Event
}

func NewPlayer(s *Session, queue int) *Player {
	return &Player{session: s, events: make(chan Event, queue)}
}

func (p *Player) Session() *Session {
	return p.session
}

// Post queues ev. Pointer events are dropped while a mouse-down handler
// runs, and any event is dropped when the queue is full.
func (p *Player) Post(ev Event) bool {
	if ev.Kind.pointer() && p.session.PointerBusy() {
		return false
	}
	select {
	case p.events <- ev:
		return true
	default:
		return false
	}
}

// Goto queues a navigation and waits for it.
func (p *Player) Goto(ctx context.Context, stack string, card int) error {
	res := make(chan error, 1)
	if !p.Post(Event{Kind: EventGoto, Stack: stack, Card: card, Result: res}) {
		return ErrDropped
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			err := p.handle(ctx, ev)
			if err != nil && ctx.Err() == nil {
				p.session.hub.Error("[engine] %s: %v", ev.Kind, err)
			}
			if ev.Result != nil {
				ev.Result <- err
			}
		}
	}
}

func (p *Player) handle(ctx context.Context, ev Event) error {
	s := p.session
	switch ev.Kind {
	case EventMove:
		return s.MouseMove(ctx, ev.Point)
	case EventDown:
		return s.MouseDown(ctx, ev.Point)
	case EventUp:
		return s.MouseUp(ctx, ev.Point)
	case EventGoto:
		err := s.GotoCard(ctx, ev.Stack, ev.Card)
		if err == nil {
			loc := s.Location()
			log.Printf("[engine] at %s card %d", loc.Stack, loc.Card)
		}
		return err
	}
	return errors.Errorf("unknown event %v", ev.Kind)
}
