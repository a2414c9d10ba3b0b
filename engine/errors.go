package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrMissingMapping = errors.New("missing mapping")

// MissingMappingError is a goto-stack whose destination could not be
// resolved to a card.
type MissingMappingError struct {
	Stack   string
	StackID int
	Code    uint32
}

func (e *MissingMappingError) Error() string {
	if e.Stack == "" {
		return fmt.Sprintf("no stack with id %d", e.StackID)
	}
	return fmt.Sprintf("no card in %s with map code %#x", e.Stack, e.Code)
}

func (e *MissingMappingError) Is(target error) bool { return target == ErrMissingMapping }
