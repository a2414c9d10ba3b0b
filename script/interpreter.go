package script

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mogaika/moiety/config"
)

var ErrUnknownCommand = errors.New("unknown command")

type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

func (e *UnknownCommandError) Is(target error) bool {
	return target == ErrUnknownCommand
}

// Host supplies variable values for branches and executes every other
// instruction. Execute blocks until the instruction's effect completes.
type Host interface {
	Value(variable int) int
	Execute(ctx context.Context, ins *Instruction) error
}

type frame struct {
	seq []Instruction
	pc  int
}

type Interpreter struct {
	host Host
}

func NewInterpreter(host Host) *Interpreter {
	return &Interpreter{host: host}
}

// Run executes seq to completion. Branch bodies are pushed as frames so
// nesting depth does not grow the Go stack. The first failing instruction
// aborts the whole sequence.
func (in *Interpreter) Run(ctx context.Context, seq []Instruction) error {
	stack := []frame{{seq: seq}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.pc >= len(top.seq) {
			stack = stack[:len(stack)-1]
			continue
		}
		ins := &top.seq[top.pc]
		top.pc++

		if err := ctx.Err(); err != nil {
			return err
		}

		if ins.Op == OpBranch {
			body := ins.Select(in.host.Value(ins.Variable), config.WildcardCase)
			if len(body) != 0 {
				stack = append(stack, frame{seq: body})
			}
			continue
		}

		if err := in.host.Execute(ctx, ins); err != nil {
			return errors.Wrapf(err, "%v", ins)
		}
	}
	return nil
}

// RunHandler runs the handler for ev; a missing handler succeeds at once.
func (in *Interpreter) RunHandler(ctx context.Context, s Script, ev Event) error {
	seq, ok := s.Handler(ev)
	if !ok {
		return nil
	}
	if err := in.Run(ctx, seq); err != nil {
		return errors.Wrapf(err, "handler %s", ev)
	}
	return nil
}
