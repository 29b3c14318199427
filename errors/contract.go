package errors

import "fmt"

// ContractViolation is the panic value raised for programmer errors in a
// call site. It is never returned as an error value.
type ContractViolation struct {
	Phase  Phase
	Detail string
}

func (c *ContractViolation) Error() string {
	return fmt.Sprintf("[%s] contract violation: %s", c.Phase, c.Detail)
}

// Violation panics with a *ContractViolation.
func Violation(phase Phase, format string, args ...any) {
	panic(&ContractViolation{Phase: phase, Detail: fmt.Sprintf(format, args...)})
}

// Is matches an *Error target of the same phase with KindContract, so a
// recovered violation can be compared like a returned error.
func (c *ContractViolation) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindContract && t.Phase == c.Phase
}

// Policy selects how a bound operation surfaces a recoverable error.
type Policy uint8

const (
	// PolicyReturn returns errors to the caller.
	PolicyReturn Policy = iota
	// PolicyPanic panics with the error, for call sites that prefer
	// exception-style propagation.
	PolicyPanic
)

func (p Policy) String() string {
	switch p {
	case PolicyReturn:
		return "return"
	case PolicyPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Apply surfaces err according to the policy. A nil err is returned as is.
func (p Policy) Apply(err error) error {
	if err == nil {
		return nil
	}
	if p == PolicyPanic {
		panic(err)
	}
	return err
}
