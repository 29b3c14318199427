package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseWrap       Phase = "wrap"       // taking ownership of a foreign handle
	PhaseUnwrap     Phase = "unwrap"     // handing a handle to the foreign side
	PhaseCollection Phase = "collection" // container adaptation
	PhaseCallback   Phase = "callback"   // callback trampolines
	PhaseValue      Phase = "value"      // dynamic value box
	PhaseRegistry   Phase = "registry"   // type lookup
	PhaseBind       Phase = "bind"       // boundary contract
	PhaseMemory     Phase = "memory"     // foreign heap
	PhaseConnection Phase = "connection" // signal subscriptions
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch      Kind = "type_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindMissingCapability Kind = "missing_capability"
	KindCallbackPanic     Kind = "callback_panic"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindAllocation        Kind = "allocation"
	KindRegistration      Kind = "registration"
	KindNotInitialized    Kind = "not_initialized"
	KindClosed            Kind = "closed"
	KindContract          Kind = "contract"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	GoType      string
	ForeignType string
	Detail      string
	Path        []string
}

// Error renders "[phase] kind at path: Go type G, foreign type F - detail
// (caused by: cause)", omitting absent parts.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Phase, e.Kind)
	if len(e.Path) > 0 {
		b.WriteString(" at " + strings.Join(e.Path, "."))
	}

	var types []string
	if e.GoType != "" {
		types = append(types, "Go type "+e.GoType)
	}
	if e.ForeignType != "" {
		types = append(types, "foreign type "+e.ForeignType)
	}
	sep := ": "
	if len(types) > 0 {
		b.WriteString(sep + strings.Join(types, ", "))
		sep = " - "
	}
	if e.Detail != "" {
		b.WriteString(sep + e.Detail)
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// ForeignType sets the foreign type name
func (b *Builder) ForeignType(t string) *Builder {
	b.err.ForeignType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

func newf(phase Phase, kind Kind, format string, args ...any) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// TypeMismatch reports a value whose Go type does not match the foreign
// type it is stored as.
func TypeMismatch(phase Phase, path []string, goType, foreignType string) *Error {
	return &Error{Phase: phase, Kind: KindTypeMismatch, Path: path, GoType: goType, ForeignType: foreignType}
}

// AllocationFailed reports a heap that cannot satisfy a request.
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return newf(phase, KindAllocation, "failed to allocate %d bytes (align %d)", size, align)
}

// OutOfBounds reports an index past the end of a collection.
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	e := newf(phase, KindOutOfBounds, "index %d out of bounds (length %d)", index, length)
	e.Path, e.Value = path, index
	return e
}

// MissingCapability reports a foreign symbol, type or signal the runtime
// does not provide.
func MissingCapability(phase Phase, what, name string) *Error {
	e := newf(phase, KindMissingCapability, "%s %q is not available", what, name)
	e.Value = name
	return e
}

// CallbackPanic wraps a value recovered from a callback body.
func CallbackPanic(recovered any) *Error {
	if err, ok := recovered.(error); ok {
		return &Error{Phase: PhaseCallback, Kind: KindCallbackPanic, Detail: "callback panicked", Cause: err, Value: recovered}
	}
	e := newf(PhaseCallback, KindCallbackPanic, "callback panicked: %v", recovered)
	e.Value = recovered
	return e
}

// Wrap attaches phase and kind to an error from below.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: detail, Cause: cause}
}

func NotInitialized(phase Phase, what string) *Error {
	return newf(phase, KindNotInitialized, "%s not initialized", what)
}

func NotFound(phase Phase, what, name string) *Error {
	return newf(phase, KindNotFound, "%s %q not found", what, name)
}

func InvalidInput(phase Phase, detail string) *Error {
	return &Error{Phase: phase, Kind: KindInvalidInput, Detail: detail}
}

// Registration reports a failed type or symbol registration.
func Registration(phase Phase, name string, cause error) *Error {
	e := newf(phase, KindRegistration, "register %s", name)
	e.Cause = cause
	return e
}

// Closed reports use of a closed heap, table or registry.
func Closed(phase Phase, what string) *Error {
	return newf(phase, KindClosed, "%s closed", what)
}
