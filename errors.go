package prowl

import (
	"fmt"

	"github.com/pkg/errors"
)

var errNoTarget = errors.New("target has neither ip nor domain")

type ScanErrorKind string

const (
	ScanTimeout     ScanErrorKind = "timeout"
	ScanToolMissing ScanErrorKind = "tool-missing"
	ScanNonZeroExit ScanErrorKind = "non-zero-exit"
)

// Scan-phase failure. Non-fatal to the run: the runner logs it and
// omits the (adapter, kind) pair from the manifest.
type ScanError struct {
	Plugin string
	Kind   ScanErrorKind
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s (%s): %v", e.Plugin, e.Kind, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Raised only when an artifact is not readable as the expected
// structural format at all. Malformed-but-well-formed input yields an
// empty finding set instead.
type ParseError struct {
	Plugin string
	Path   string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Plugin, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Adapter equivalence logic failed. The collector downgrades this to
// "no merge": both unmerged sets pass through with per-kind tags.
type MergeError struct {
	Plugin string
	Err    error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %s: %v", e.Plugin, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

type StoreErrorKind string

const (
	StoreConnectionLost      StoreErrorKind = "connection-lost"
	StoreConstraintViolation StoreErrorKind = "constraint-violation"
)

// Store-phase failure. Fatal to the current collector invocation;
// findings already committed by other adapters stay put.
type StoreError struct {
	Kind StoreErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store (%s): %v", e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
