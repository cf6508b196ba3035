// Package apperror defines the structured error values surfaced by the query
// pipeline. Every failure carries a Kind, a human-readable message and,
// where relevant, the offending JSON payload, so the web layer can render it
// without inspecting transport details.
package apperror

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindTransport         Kind = "TransportError"
	KindHTTPStatus        Kind = "HttpStatusError"
	KindMalformedResponse Kind = "MalformedResponse"
	KindInvalidElement    Kind = "InvalidElement"
	KindNoEdgesFound      Kind = "NoEdgesFound"
	KindMissingEdgeKey    Kind = "MissingEdgeKey"
	KindPartialExport     Kind = "PartialExportFailure"
	KindInvalidParameter  Kind = "InvalidParameter"
)

// Error is a classified failure from one of the external services or from
// graph classification.
type Error struct {
	Kind     Kind
	Message  string
	Endpoint string
	Status   int
	Value    json.RawMessage
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Endpoint != "" {
		b.WriteString(" [")
		b.WriteString(e.Endpoint)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type errorJSON struct {
	Kind     Kind            `json:"kind"`
	Message  string          `json:"error"`
	Endpoint string          `json:"endpoint,omitempty"`
	Status   int             `json:"status,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON renders the error as {kind, error, endpoint?, status?, value?}.
func (e *Error) MarshalJSON() ([]byte, error) {
	msg := e.Message
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return json.Marshal(errorJSON{
		Kind:     e.Kind,
		Message:  msg,
		Endpoint: e.Endpoint,
		Status:   e.Status,
		Value:    e.Value,
	})
}

// Transport reports a connection-level failure talking to endpoint.
func Transport(endpoint string, err error) *Error {
	return &Error{Kind: KindTransport, Message: "request failed", Endpoint: endpoint, Err: err}
}

// HTTPStatus reports a non-2xx response.
func HTTPStatus(endpoint string, status int, message string) *Error {
	if message == "" {
		message = "unexpected status"
	}
	return &Error{Kind: KindHTTPStatus, Message: message, Endpoint: endpoint, Status: status}
}

// Malformed reports a response missing an expected field or carrying it with
// the wrong type.
func Malformed(endpoint, message string) *Error {
	return &Error{Kind: KindMalformedResponse, Message: message, Endpoint: endpoint}
}

// InvalidElement reports a classifier rejection of a single result element.
func InvalidElement(reason string, value []byte) *Error {
	return &Error{Kind: KindInvalidElement, Message: reason, Value: rawCopy(value)}
}

// NoEdgesFound reports a result set without any edge.
func NoEdgesFound() *Error {
	return &Error{Kind: KindNoEdgesFound, Message: "no valid edges"}
}

// MissingEdgeKey describes an edge dropped from an export because it has no _key.
func MissingEdgeKey(value []byte) *Error {
	return &Error{Kind: KindMissingEdgeKey, Message: "edge has no _key, dropped from export", Value: rawCopy(value)}
}

// InvalidParameter reports a bind variable that does not match its declared type.
func InvalidParameter(name, message string) *Error {
	return &Error{Kind: KindInvalidParameter, Message: fmt.Sprintf("parameter %q: %s", name, message)}
}

// PartialExportError is returned when the network was created but one or
// more column or layout calls failed afterwards.
type PartialExportError struct {
	NetworkSUID int64
	Failures    []error
}

func (e *PartialExportError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%s: network %d created with %d failed step(s): %s",
		KindPartialExport, e.NetworkSUID, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *PartialExportError) Unwrap() []error {
	return e.Failures
}

// MarshalJSON renders {kind, error, network_suid, failures}.
func (e *PartialExportError) MarshalJSON() ([]byte, error) {
	failures := make([]json.RawMessage, 0, len(e.Failures))
	for _, f := range e.Failures {
		raw, err := json.Marshal(Describe(f))
		if err != nil {
			return nil, err
		}
		failures = append(failures, raw)
	}
	return json.Marshal(struct {
		Kind        Kind              `json:"kind"`
		Message     string            `json:"error"`
		NetworkSUID int64             `json:"network_suid"`
		Failures    []json.RawMessage `json:"failures"`
	}{
		Kind:        KindPartialExport,
		Message:     fmt.Sprintf("%d export step(s) failed after network creation", len(e.Failures)),
		NetworkSUID: e.NetworkSUID,
		Failures:    failures,
	})
}

// KindOf returns the Kind of err, or "" when err is not a pipeline error.
func KindOf(err error) Kind {
	var pe *PartialExportError
	if errors.As(err, &pe) {
		return KindPartialExport
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err is, or wraps, a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Describe converts any error into a JSON-serializable structured value.
// Unclassified errors are reported with an empty kind.
func Describe(err error) any {
	if err == nil {
		return nil
	}
	var pe *PartialExportError
	if errors.As(err, &pe) {
		return pe
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return errorJSON{Message: err.Error()}
}

func rawCopy(value []byte) json.RawMessage {
	if len(value) == 0 {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
