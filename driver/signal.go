package driver

import (
	"errors"
	"fmt"

	"github.com/petasbytes/go-conv/conv"
)

// SignalKind is the driver's view of why a completion ended.
type SignalKind int

const (
	Normal SignalKind = iota
	ToolCalls
	Truncated
	ContentFiltered
	Unsupported
)

func (k SignalKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case ToolCalls:
		return "tool_calls"
	case Truncated:
		return "truncated"
	case ContentFiltered:
		return "content_filtered"
	case Unsupported:
		return "unsupported"
	}
	return fmt.Sprintf("SignalKind(%d)", int(k))
}

// FinishSignal is a classified completion. Calls is set only for ToolCalls.
type FinishSignal struct {
	Kind   SignalKind
	Reason conv.FinishReason
	Calls  []conv.ToolCall
}

// Failed reports whether the signal routes to the failure handler.
func (s FinishSignal) Failed() bool {
	return s.Kind == Truncated || s.Kind == ContentFiltered || s.Kind == Unsupported
}

// Classify maps a finish reason to a signal. Unrecognised reasons are Normal.
func Classify(reason conv.FinishReason, m conv.Message) FinishSignal {
	s := FinishSignal{Reason: reason}
	switch reason {
	case conv.FinishToolCalls:
		s.Kind = ToolCalls
		s.Calls = m.ToolCalls()
	case conv.FinishLength:
		s.Kind = Truncated
	case conv.FinishContentFilter:
		s.Kind = ContentFiltered
	case conv.FinishFunctionCall:
		s.Kind = Unsupported
	default:
		s.Kind = Normal
	}
	return s
}

// ErrMalformedResponse is returned when a backend reply is structurally
// inconsistent, e.g. a tool_calls finish with no calls.
var ErrMalformedResponse = errors.New("driver: malformed backend response")

// TransportError wraps a failed backend call. The driver does not retry;
// wrap the backend with backend.Retry for that.
type TransportError struct {
	Model string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend call for model %s failed: %v", e.Model, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FinishReasonError reports a one-shot conversation that ended without output.
type FinishReasonError struct {
	Reason conv.FinishReason
}

func (e *FinishReasonError) Error() string {
	return fmt.Sprintf("conversation ended without output, finish reason %q", e.Reason)
}
