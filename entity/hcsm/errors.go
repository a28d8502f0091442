package hcsm

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
)

var (
	ErrCapacityExhausted = errors.New("entity table capacity exhausted")
	ErrUnknownTemplate   = errors.New("unknown entity template")
	ErrConstruction      = errors.New("entity construction failed")
	ErrInvalidID         = errors.New("invalid or stale entity id")
	ErrNotRoot           = errors.New("entity is not a root entity")
)

// ExecutionFault is an error returned or a panic raised by entity code.
// The scheduler isolates it to the faulting entity and keeps going.
type ExecutionFault struct {
	Name  string
	ID    entity.ID
	Frame int32
	Phase string // create, execute or destroy
	Err   error
}

func (f *ExecutionFault) Error() string {
	return fmt.Sprintf("entity %s (%s) %s fault at frame %d: %v", f.Name, f.ID, f.Phase, f.Frame, f.Err)
}

func (f *ExecutionFault) Unwrap() error {
	return f.Err
}
