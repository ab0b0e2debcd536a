package frontend

import (
	"github.com/cockroachdb/errors"

	"github.com/phobologic/abilib/internal/model"
)

// Status is the tag of an Outcome.
type Status int

const (
	Success Status = iota
	SuccessWithWarnings
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case SuccessWithWarnings:
		return "success-with-warnings"
	}
	return "failure"
}

// Reason explains a Failure.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonInternal covers resource exhaustion and frontend library
	// faults.
	ReasonInternal
	// ReasonUnsupported is an unsupported language or dialect combination.
	ReasonUnsupported
	// ReasonCompilation is one or more parse or semantic errors.
	ReasonCompilation
)

func (r Reason) String() string {
	switch r {
	case ReasonInternal:
		return "internal failure"
	case ReasonUnsupported:
		return "unsupported language or dialect"
	case ReasonCompilation:
		return "compilation failed"
	}
	return "none"
}

// Outcome is the result of ProcessBuffer.
type Outcome struct {
	Status Status
	Reason Reason
	// Diagnostics holds every captured message, one per line.
	Diagnostics string
	Errors      int
	Warnings    int
	// Events counts dispatched declaration events.
	Events    int
	Cancelled bool

	cause error
}

// Err returns nil unless the outcome is a Failure. The error is classified
// in the model taxonomy and carries the diagnostics as detail.
func (o Outcome) Err() error {
	if o.Status != Failure {
		return nil
	}
	var err error
	switch o.Reason {
	case ReasonUnsupported:
		err = errors.Mark(errors.New(o.Reason.String()), model.ErrConfiguration)
	case ReasonCompilation:
		err = errors.Mark(errors.Newf("%d error(s)", o.Errors), model.ErrParse)
	default:
		err = errors.New(o.Reason.String())
		if o.cause != nil {
			err = errors.Wrap(o.cause, o.Reason.String())
		}
	}
	if o.Diagnostics != "" {
		err = errors.WithDetail(err, o.Diagnostics)
	}
	return err
}

func outcomeFor(d *diagnostics) Outcome {
	o := Outcome{Diagnostics: d.String(), Errors: d.errors, Warnings: d.warnings}
	switch {
	case d.errors > 0:
		o.Status, o.Reason = Failure, ReasonCompilation
	case d.warnings > 0:
		o.Status = SuccessWithWarnings
	}
	return o
}
