package script

// Event names a handler slot of a card or hotspot script.
type Event string

const (
	MouseEnter    Event = "mouse-enter"
	MouseLeave    Event = "mouse-leave"
	MouseWithin   Event = "mouse-within"
	MouseDown     Event = "mouse-down"
	MouseUp       Event = "mouse-up"
	LoadCard      Event = "load-card"
	OpenCard      Event = "open-card"
	CloseCard     Event = "close-card"
	DisplayUpdate Event = "display-update"
)

var Events = []Event{
	MouseEnter, MouseLeave, MouseWithin, MouseDown, MouseUp,
	LoadCard, OpenCard, CloseCard, DisplayUpdate,
}

// Script maps handler names to instruction sequences.
type Script map[Event][]Instruction

func (s Script) Handler(ev Event) ([]Instruction, bool) {
	seq, ok := s[ev]
	return seq, ok
}

// Walk visits every instruction of every handler, descending into branch
// cases before moving on.
func (s Script) Walk(f func(ins *Instruction)) {
	for _, seq := range s {
		WalkSequence(seq, f)
	}
}

func WalkSequence(seq []Instruction, f func(ins *Instruction)) {
	for i := range seq {
		f(&seq[i])
		for _, body := range seq[i].Cases {
			WalkSequence(body, f)
		}
	}
}
