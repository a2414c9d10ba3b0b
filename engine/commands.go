package engine

import (
	"context"
	"image"
	"time"

	"github.com/mogaika/moiety/audio"
	"github.com/mogaika/moiety/loader"
	"github.com/mogaika/moiety/resource"
	"github.com/mogaika/moiety/script"
)

// Execute implements script.Host. It blocks until the command's effect,
// including any navigation or sound it waits for, has completed.
func (s *Session) Execute(ctx context.Context, ins *script.Instruction) error {
	switch ins.Op {
	case script.OpActivateBLST:
		s.activateBLST(ins.Arg(0))
	case script.OpActivatePLST:
		return s.activatePLST(ctx, ins.Arg(0))
	case script.OpActivateSLST:
		return s.activateSLST(ctx, ins.Arg(0))
	case script.OpCall:
		return s.callExternal(ctx, ins)
	case script.OpDisableUpdate:
		s.screen.Disable()
	case script.OpEnableUpdate:
		return s.enableScreenUpdate(ctx)
	case script.OpGotoCard:
		return s.GotoCard(ctx, s.stackName(), ins.Arg(0))
	case script.OpGotoStack:
		return s.gotoStack(ctx, ins.Arg(0), ins.Arg(1), ins.Arg(2))
	case script.OpIncrement:
		name := s.variableName(ins.Arg(0))
		s.SetVariable(name, s.Variable(name)+ins.Arg(1))
	case script.OpPause:
		return s.sleep(ctx, time.Duration(ins.Arg(0))*time.Millisecond)
	case script.OpPlayWav:
		return s.playWav(ctx, ins.Arg(0))
	case script.OpReload:
		if s.card == nil {
			return nil
		}
		return s.GotoCard(ctx, s.stackName(), s.card.id)
	case script.OpSetCursor:
		s.cursor.Set(ins.Arg(0))
	case script.OpSetVar:
		s.SetVariable(s.variableName(ins.Arg(0)), ins.Arg(1))
	case script.OpTransition:
		// the rectangle arguments are ignored
		s.screen.ScheduleTransition(ins.Arg(0))
	case script.OpDrawBmp:
		return s.drawBitmap(ctx, ins.Arg(0), image.Rect(ins.Arg(1), ins.Arg(2), ins.Arg(3), ins.Arg(4)))
	case script.OpEnableHotspot, script.OpDisableHotspot:
		if s.card != nil {
			s.mu.Lock()
			s.setHotspots(ins.Arg(0), ins.Op == script.OpEnableHotspot)
			s.mu.Unlock()
		}
	default:
		s.hub.Error("[engine] %v (skipped)", &script.UnknownCommandError{Name: ins.Name})
	}
	return nil
}

func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-s.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) playWav(ctx context.Context, id int) error {
	snd, err := loader.Get[*audio.Sound](ctx, s.loader, s.key(resource.TWAV, id))
	if err != nil {
		return err
	}
	select {
	case <-s.mixer.Play(snd):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) drawBitmap(ctx context.Context, id int, r image.Rectangle) error {
	img, err := s.loader.Bitmap(ctx, s.stackName(), id)
	if err != nil {
		return err
	}
	if r.Empty() {
		r = img.Bounds().Sub(img.Bounds().Min)
	}
	return s.screen.Draw(ctx, img, r)
}

// gotoStack resolves the destination card through the RMAP of the
// destination stack and navigates there.
func (s *Session) gotoStack(ctx context.Context, stackID, codeHi, codeLo int) error {
	stack, ok := s.StackName(stackID)
	if !ok {
		return &MissingMappingError{StackID: stackID}
	}
	code := uint32(codeHi)<<16 | uint32(codeLo)
	rmap, err := s.loader.RoomMap(ctx, stack)
	if err != nil {
		return err
	}
	card, found := rmap.Find(code)
	if !found {
		return &MissingMappingError{Stack: stack, StackID: stackID, Code: code}
	}
	return s.GotoCard(ctx, stack, card)
}
