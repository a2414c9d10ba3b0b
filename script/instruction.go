package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Op identifies the kind of an Instruction.
type Op int

const (
	OpUnknown Op = iota
	OpBranch
	OpActivateBLST
	OpActivatePLST
	OpActivateSLST
	OpCall
	OpDisableUpdate
	OpEnableUpdate
	OpGotoCard
	OpGotoStack
	OpIncrement
	OpPause
	OpPlayWav
	OpReload
	OpSetCursor
	OpSetVar
	OpTransition
	OpDrawBmp
	OpEnableHotspot
	OpDisableHotspot
)

var opNames = map[Op]string{
	OpBranch:         "branch",
	OpActivateBLST:   "activate-blst",
	OpActivatePLST:   "activate-plst",
	OpActivateSLST:   "activate-slst",
	OpCall:           "call",
	OpDisableUpdate:  "disable-update",
	OpEnableUpdate:   "enable-update",
	OpGotoCard:       "goto-card",
	OpGotoStack:      "goto-stack",
	OpIncrement:      "increment",
	OpPause:          "pause",
	OpPlayWav:        "play-wav",
	OpReload:         "reload",
	OpSetCursor:      "set-cursor",
	OpSetVar:         "set-var",
	OpTransition:     "transition",
	OpDrawBmp:        "draw-bmp",
	OpEnableHotspot:  "enable-hotspot",
	OpDisableHotspot: "disable-hotspot",
}

var opByName map[string]Op

func init() {
	opByName = make(map[string]Op, len(opNames))
	for op, name := range opNames {
		opByName[name] = op
	}
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown"
}

// LookupOp maps an instruction name to its Op, OpUnknown if not recognized.
func LookupOp(name string) Op {
	return opByName[name]
}

// Instruction is either a command (Op plus positional Arguments) or, when
// Op is OpBranch, a conditional over Variable with nested Cases.
type Instruction struct {
	Op        Op
	Name      string
	Arguments []int

	Variable int
	Cases    map[int][]Instruction
}

func Command(name string, args ...int) Instruction {
	return Instruction{Op: LookupOp(name), Name: name, Arguments: args}
}

func Branch(variable int, cases map[int][]Instruction) Instruction {
	return Instruction{Op: OpBranch, Name: opNames[OpBranch], Variable: variable, Cases: cases}
}

// Arg returns argument i, or 0 when the instruction is too short.
func (ins *Instruction) Arg(i int) int {
	if i < 0 || i >= len(ins.Arguments) {
		return 0
	}
	return ins.Arguments[i]
}

// Select returns the case for value, falling back to the wildcard case and
// finally to an empty sequence.
func (ins *Instruction) Select(value int, wildcard int) []Instruction {
	if seq, ok := ins.Cases[value]; ok {
		return seq
	}
	if seq, ok := ins.Cases[wildcard]; ok {
		return seq
	}
	return nil
}

type jsonInstruction struct {
	Name      json.RawMessage              `json:"name"`
	Arguments []int                        `json:"arguments,omitempty"`
	Variable  *int                         `json:"variable,omitempty"`
	Cases     map[string][]json.RawMessage `json:"cases,omitempty"`
}

func decodeName(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("instruction without name")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	// unknown opcodes come through as bare numbers
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.Wrapf(err, "bad instruction name %s", raw)
	}
	return strconv.Itoa(n), nil
}

func (ins *Instruction) UnmarshalJSON(data []byte) error {
	var j jsonInstruction
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	name, err := decodeName(j.Name)
	if err != nil {
		return err
	}
	*ins = Instruction{Op: LookupOp(name), Name: name, Arguments: j.Arguments}
	if ins.Op != OpBranch {
		return nil
	}
	if j.Variable == nil {
		return errors.New("branch without variable")
	}
	ins.Variable = *j.Variable
	ins.Cases = make(map[int][]Instruction, len(j.Cases))
	for key, body := range j.Cases {
		v, err := strconv.Atoi(key)
		if err != nil {
			return errors.Wrapf(err, "bad branch case %q", key)
		}
		seq := make([]Instruction, len(body))
		for i, raw := range body {
			if err := seq[i].UnmarshalJSON(raw); err != nil {
				return errors.Wrapf(err, "case %d instruction %d", v, i)
			}
		}
		ins.Cases[v] = seq
	}
	return nil
}

func (ins Instruction) MarshalJSON() ([]byte, error) {
	if ins.Op != OpBranch {
		return json.Marshal(struct {
			Name      string `json:"name"`
			Arguments []int  `json:"arguments"`
		}{ins.Name, ins.Arguments})
	}
	cases := make(map[string][]Instruction, len(ins.Cases))
	for v, seq := range ins.Cases {
		cases[strconv.Itoa(v)] = seq
	}
	return json.Marshal(struct {
		Name     string                   `json:"name"`
		Variable int                      `json:"variable"`
		Cases    map[string][]Instruction `json:"cases"`
	}{ins.Name, ins.Variable, cases})
}

func (ins *Instruction) String() string {
	if ins.Op == OpBranch {
		return fmt.Sprintf("branch var%d (%d cases)", ins.Variable, len(ins.Cases))
	}
	s := ins.Name
	for _, a := range ins.Arguments {
		s += fmt.Sprint(" ", a)
	}
	return s
}

func renderSequence(out []string, seq []Instruction, depth int) []string {
	indent := strings.Repeat("  ", depth)
	for i := range seq {
		ins := &seq[i]
		if ins.Op != OpBranch {
			out = append(out, indent+ins.String())
			continue
		}
		out = append(out, fmt.Sprintf("%sbranch var%d:", indent, ins.Variable))
		keys := make([]int, 0, len(ins.Cases))
		for k := range ins.Cases {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for _, k := range keys {
			if k == 0xFFFF {
				out = append(out, indent+"  case *:")
			} else {
				out = append(out, fmt.Sprintf("%s  case %d:", indent, k))
			}
			out = renderSequence(out, ins.Cases[k], depth+2)
		}
	}
	return out
}

func RenderSequenceLines(seq []Instruction) []string {
	return renderSequence(make([]string, 0, len(seq)), seq, 0)
}

func RenderSequence(seq []Instruction) string {
	return strings.Join(RenderSequenceLines(seq), "\n")
}
