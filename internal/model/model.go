// Package model defines the run report and error taxonomy shared by abilib's
// pipeline, CLI and report encoders.
package model

import "github.com/cockroachdb/errors"

// Error taxonomy. Errors are classified with errors.Mark so callers can test
// with errors.Is regardless of wrapping.
var (
	// ErrConfiguration covers bad language, dialect or profile selection.
	ErrConfiguration = errors.New("configuration error")
	// ErrParse covers one or more preprocessor, syntax or semantic errors.
	ErrParse = errors.New("parse error")
	// ErrSymbolConflict covers an incompatible re-declaration of one external symbol.
	ErrSymbolConflict = errors.New("symbol conflict")
	// ErrUnrepresentableType covers a parameter or return type that has no
	// ABI-faithful rendering. It is recoverable: the symbol is omitted.
	ErrUnrepresentableType = errors.New("unrepresentable type")
	// ErrIO covers failures writing generated artifacts.
	ErrIO = errors.New("i/o error")
)

// Status is the final state of one (header set, profile) pair.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarnings Status = "warnings"
	StatusFailed   Status = "failed"
)

// Omission records a declaration that was observed but not admitted because
// its type could not be rendered.
type Omission struct {
	Symbol   string
	Location string
	Reason   string
}

// PairReport is the outcome of one (header set, profile) pair.
type PairReport struct {
	Name        string
	Profile     string
	Language    string
	Status      Status
	Symbols     int
	Omissions   []Omission
	HeaderPath  string
	SourcePath  string
	Hash        string
	Category    string // error taxonomy name for failures
	Diagnostics string
}

// Report is the complete result of one abilib invocation.
type Report struct {
	Version string
	Pairs   []PairReport
}

// Failed reports whether any pair failed outright.
func (r *Report) Failed() bool {
	for i := range r.Pairs {
		if r.Pairs[i].Status == StatusFailed {
			return true
		}
	}
	return false
}

// Counts returns the number of succeeded and failed pairs.
func (r *Report) Counts() (ok, failed int) {
	for i := range r.Pairs {
		if r.Pairs[i].Status == StatusFailed {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}

// Category names the taxonomy class of err, or "" when err is nil or
// unclassified.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "ConfigurationError"
	case errors.Is(err, ErrSymbolConflict):
		return "SymbolConflict"
	case errors.Is(err, ErrParse):
		return "ParseError"
	case errors.Is(err, ErrIO):
		return "IOError"
	case errors.Is(err, ErrUnrepresentableType):
		return "UnrepresentableType"
	default:
		return "InternalError"
	}
}
