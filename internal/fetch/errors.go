// Package fetch implements the acquisition and merge pipeline: it downloads
// the streams named by a selection plan, invokes the external merge tool when
// required, and owns the lifecycle of the per-operation workspace.
package fetch

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable failure code surfaced to callers.
type Code string

const (
	// CodeToolUnavailable: a merge is required but the external tool is missing.
	CodeToolUnavailable Code = "tool_unavailable"

	// CodeAcquisitionFailed: a stream transfer did not complete or wrote zero bytes.
	CodeAcquisitionFailed Code = "acquisition_failed"

	// CodeMergeFailed: the external tool exited non-zero, timed out, or produced
	// an empty or missing output.
	CodeMergeFailed Code = "merge_failed"

	// CodeUnknownStrategy: the selection plan carried a strategy this pipeline
	// does not implement.
	CodeUnknownStrategy Code = "unknown_strategy"
)

// PipelineError is the typed failure returned by the orchestrator. Every
// failure aborts the pipeline, triggers full workspace cleanup, and carries a
// stable code plus a human-readable message; partial artifacts are never
// returned.
type PipelineError struct {
	Code    Code
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same request could plausibly
// succeed: tool availability, transfers, and merges depend on infrastructure
// state, while an unknown strategy never fixes itself.
func (e *PipelineError) Transient() bool {
	switch e.Code {
	case CodeToolUnavailable, CodeAcquisitionFailed, CodeMergeFailed:
		return true
	default:
		return false
	}
}

func pipelineErr(code Code, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

// AsPipelineError unwraps err into a *PipelineError, if it is one.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
