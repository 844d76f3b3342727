package progress

import (
	"errors"
	"fmt"
)

// Contract violations. They are raised with panic wrapped in a ContractError
// because they mean the caller's call tree no longer matches the stack.
var (
	ErrStepOverflow     = errors.New("step index would reach the declared total")
	ErrNotTopOfStack    = errors.New("task is not the top of its stack")
	ErrTaskNotInStack   = errors.New("task is not registered on its stack")
	ErrSecondSubtask    = errors.New("single-subtask step already spawned a subtask")
	ErrUnbalancedResume = errors.New("resume without a matching suspend")
	ErrRegistryFrozen   = errors.New("listener registry is sealed once tracking starts")
	ErrDuplicateElement = errors.New("duplicate element in expected set")
)

// ContractError is the panic value used for contract violations.
type ContractError struct {
	Op   string
	Task string
	Err  error
}

func (e *ContractError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("progress %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("progress %s %q: %v", e.Op, e.Task, e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}
