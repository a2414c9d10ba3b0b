package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/mogaika/moiety/screen"
	"github.com/mogaika/moiety/script"
)

// ExternalCommand is a named one-shot command reachable through the call
// instruction.
type ExternalCommand func(ctx context.Context, s *Session, args []int) error

var (
	externalLock     sync.RWMutex
	externalCommands = make(map[string]ExternalCommand)
)

func SetExternal(name string, cmd ExternalCommand) {
	externalLock.Lock()
	defer externalLock.Unlock()
	externalCommands[name] = cmd
}

func lookupExternal(name string) (ExternalCommand, bool) {
	externalLock.RLock()
	defer externalLock.RUnlock()
	cmd, ok := externalCommands[name]
	return cmd, ok
}

// callExternal decodes call(nameID, argc, args...) and dispatches it.
// Names that resolve to no registered command are reported and skipped.
func (s *Session) callExternal(ctx context.Context, ins *script.Instruction) error {
	nameID, argc := ins.Arg(0), ins.Arg(1)
	args := []int{}
	if len(ins.Arguments) > 2 {
		args = ins.Arguments[2:]
		if argc >= 0 && argc < len(args) {
			args = args[:argc]
		}
	}

	name := fmt.Sprintf("#%d", nameID)
	if s.stack != nil {
		if n, ok := s.stack.CommandNames.Lookup(nameID); ok {
			name = n
		}
	}
	cmd, ok := lookupExternal(name)
	if !ok {
		s.hub.Error("[engine] %v %v (skipped)", &script.UnknownCommandError{Name: name}, args)
		return nil
	}
	return cmd(ctx, s, args)
}

func xaSetupComplete(ctx context.Context, s *Session, args []int) error {
	s.screen.ScheduleTransition(screen.BlendTransition)
	return s.GotoCard(ctx, "aspit", 1)
}

func init() {
	SetExternal("xasetupcomplete", xaSetupComplete)
}
