package orcjit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind distinguishes the error taxonomy of §7 at runtime without
// string matching.
type ErrorKind int

const (
	// KindSymbolsNotFound: a lookup or remove referenced names that no
	// existing definition or generator could supply.
	KindSymbolsNotFound ErrorKind = iota + 1
	// KindDuplicateDefinition: define() targeted a name that is already
	// defined by a non-Weak definition, or a Weak one that already began
	// materializing.
	KindDuplicateDefinition
	// KindSymbolsCouldNotBeRemoved: remove() targeted a symbol that is
	// currently Materializing.
	KindSymbolsCouldNotBeRemoved
	// KindFailedToMaterialize: an MR failed, or a query's target symbol
	// failed (or was removed) before it could be satisfied.
	KindFailedToMaterialize
	// KindGeneratorError: a generator's TryGenerate returned an error.
	KindGeneratorError
)

func (k ErrorKind) String() string {
	switch k {
	case KindSymbolsNotFound:
		return "SymbolsNotFound"
	case KindDuplicateDefinition:
		return "DuplicateDefinition"
	case KindSymbolsCouldNotBeRemoved:
		return "SymbolsCouldNotBeRemoved"
	case KindFailedToMaterialize:
		return "FailedToMaterialize"
	case KindGeneratorError:
		return "GeneratorError"
	default:
		return "UnknownError"
	}
}

// Error is the single error type the core returns. Names carries the
// offending symbol set; Cause is set only for KindGeneratorError, where the
// generator's own error propagates verbatim.
type Error struct {
	Kind  ErrorKind
	Names []string
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if len(e.Names) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Names, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	return b.String()
}

// Unwrap exposes the generator's underlying error to errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// KindOf reports the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var je *Error
	if errors.As(err, &je) {
		return je.Kind, true
	}
	return 0, false
}

func errSymbolsNotFound(names []string) error {
	return &Error{Kind: KindSymbolsNotFound, Names: names}
}

func errDuplicateDefinition(names []string) error {
	return &Error{Kind: KindDuplicateDefinition, Names: names}
}

func errCouldNotBeRemoved(names []string) error {
	return &Error{Kind: KindSymbolsCouldNotBeRemoved, Names: names}
}

func errFailedToMaterialize(names []string) error {
	return &Error{Kind: KindFailedToMaterialize, Names: names}
}

func errGenerator(cause error) error {
	return &Error{Kind: KindGeneratorError, Cause: cause}
}
