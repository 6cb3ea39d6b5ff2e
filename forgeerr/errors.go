// Package forgeerr implements the closed error taxonomy of §7: one Kind per
// row of the table, built on gopkg.in/src-d/go-errors.v1 so callers can use
// errors.Is / Kind.Is for taxonomy checks instead of string matching.
package forgeerr

import (
	"fmt"
	"strings"

	goerrors "gopkg.in/src-d/go-errors.v1"
)

// Kinds, one per row of §7's table, plus Cancelled for §5's cooperative
// cancellation (see SPEC_FULL.md §7).
var (
	KindTokenize     = goerrors.NewKind("tokenize error: %s")
	KindParse        = goerrors.NewKind("parse error: %s")
	KindInclude      = goerrors.NewKind("include error: %s")
	KindReference    = goerrors.NewKind("reference error: %s")
	KindCycle        = goerrors.NewKind("circular dependency: %s")
	KindShape        = goerrors.NewKind("shape mismatch: %s")
	KindDomain       = goerrors.NewKind("domain error: %s")
	KindPropagated   = goerrors.NewKind("propagated error: %s")
	KindValidation   = goerrors.NewKind("validation mismatch: %s")
	KindImportExport = goerrors.NewKind("import/export error: %s")
	KindIO           = goerrors.NewKind("I/O error: %s")
	KindCancelled    = goerrors.NewKind("cancelled: %s")
)

// Error is the rich error record every component returns, per §7's policy
// that "functions return rich error records". It carries whichever fields
// are relevant to its Kind; unused fields stay at the zero value.
type Error struct {
	kind *goerrors.Kind
	msg  string

	// Tokenize / Parse / Reference
	Formula  string
	Position int

	// Parse
	Expected string
	Got      string

	// Include
	FilePath string
	Chain    []string

	// Reference
	Location   string
	Unresolved string
	Suggestion string
	Candidates []string

	// Cycle
	Cells []string

	// Shape
	Operation string
	LeftLen   int
	RightLen  int

	// Domain
	Function string
	Args     []interface{}

	// Propagated
	Original error

	// Validation
	CellPath string
	Stored   interface{}
	Computed interface{}
	Diff     string

	// Import/Export
	Sheet string
	Cell  string

	// I/O
	Path  string
	Cause error
}

func (e *Error) Error() string { return e.msg }

// Unwrap exposes the underlying cause for I/O and Propagated errors so
// errors.Is/errors.As chain correctly.
func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Original
}

// Is reports whether err belongs to this error's Kind, matching the
// go-errors.v1 convention used throughout the taxonomy.
func (e *Error) Is(kind *goerrors.Kind) bool {
	return e.kind == kind
}

func newErr(kind *goerrors.Kind, detail string) *Error {
	return &Error{kind: kind, msg: kind.New(detail).Error()}
}

// Tokenize builds a §4.1 tokenize error: formula, position, message.
func Tokenize(formula string, position int, message string) *Error {
	e := newErr(KindTokenize, fmt.Sprintf("%s (position %d): %s", formula, position, message))
	e.Formula, e.Position = formula, position
	return e
}

// Parse builds a §4.2 parse error: formula, token span, expected/got.
func Parse(formula string, position int, expected, got string) *Error {
	e := newErr(KindParse, fmt.Sprintf("%s (position %d): expected %s, got %s", formula, position, expected, got))
	e.Formula, e.Position, e.Expected, e.Got = formula, position, expected, got
	return e
}

// Include builds a §4.3 include error: file path, chain.
func Include(filePath string, chain []string, message string) *Error {
	e := newErr(KindInclude, fmt.Sprintf("%s (chain: %s): %s", filePath, strings.Join(chain, " -> "), message))
	e.FilePath, e.Chain = filePath, chain
	return e
}

// Reference builds a §4.4 reference error, with a "did you mean X?"
// suggestion when one was found.
func Reference(formula, location, unresolved, suggestion string, candidates []string) *Error {
	detail := fmt.Sprintf("%s at %s: unresolved reference %q", formula, location, unresolved)
	if suggestion != "" {
		detail += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	e := newErr(KindReference, detail)
	e.Formula, e.Location, e.Unresolved, e.Suggestion, e.Candidates = formula, location, unresolved, suggestion, candidates
	return e
}

// Cycle builds a §4.5 circular dependency error naming the cells involved.
func Cycle(cells []string) *Error {
	e := newErr(KindCycle, strings.Join(cells, " -> "))
	e.Cells = cells
	return e
}

// Shape builds a §4.6 shape mismatch error.
func Shape(operation string, leftLen, rightLen int) *Error {
	e := newErr(KindShape, fmt.Sprintf("%s: left length %d, right length %d", operation, leftLen, rightLen))
	e.Operation, e.LeftLen, e.RightLen = operation, leftLen, rightLen
	return e
}

// Domain builds a §4.6 domain error (division by zero, log of non-positive,
// etc.).
func Domain(function string, args []interface{}, message string) *Error {
	e := newErr(KindDomain, fmt.Sprintf("%s%v: %s", function, args, message))
	e.Function, e.Args = function, args
	return e
}

// Propagated wraps an error value flowing through an operation unchanged,
// per §4.6's error propagation rule.
func Propagated(original error) *Error {
	e := newErr(KindPropagated, original.Error())
	e.Original = original
	return e
}

// Validation builds a §4.7 validation mismatch: cell path, stored,
// computed, diff.
func Validation(cellPath string, stored, computed interface{}, diff string) *Error {
	e := newErr(KindValidation, fmt.Sprintf("%s: stored %v, computed %v\n%s", cellPath, stored, computed, diff))
	e.CellPath, e.Stored, e.Computed, e.Diff = cellPath, stored, computed, diff
	return e
}

// ImportExport builds a §4.9 bridge error: sheet, cell, message.
func ImportExport(sheet, cell, message string) *Error {
	e := newErr(KindImportExport, fmt.Sprintf("%s!%s: %s", sheet, cell, message))
	e.Sheet, e.Cell = sheet, cell
	return e
}

// IO builds a loader/writer I/O error: path, cause.
func IO(path string, cause error) *Error {
	e := newErr(KindIO, fmt.Sprintf("%s: %v", path, cause))
	e.Path, e.Cause = path, cause
	return e
}

// Cancelled builds a §5 cooperative-cancellation error.
func Cancelled(message string) *Error {
	return newErr(KindCancelled, message)
}

// Is reports whether err (or any error it wraps) belongs to kind.
func Is(err error, kind *goerrors.Kind) bool {
	var fe *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			fe = asErr
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return fe != nil && fe.Is(kind)
}
