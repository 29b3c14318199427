// Package errors provides structured error types for the ffi-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: element path, Go/foreign type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValue, errors.KindTypeMismatch).
//		GoType("string").
//		ForeignType("gint").
//		Detail("no transform registered").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseValue, nil, "string", "gint")
//	err := errors.OutOfBounds(errors.PhaseCollection, nil, 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
//
// # Contract Violations
//
// Programmer errors in generated call sites (double unwrap of a consumed
// wrapper, invoking an async callback twice, growing a fixed span past its
// size) are not returned. Violation panics with a *ContractViolation.
package errors
