// Package envelope defines the uniform response contract returned by
// every pipeline stage. Callers always receive a well-formed envelope:
// zero data with an empty Error means "no result", zero data with Error
// set means the operation failed, and an empty collection is a valid
// success state.
package envelope

import "time"

// Metadata carries per-call accounting attached to every response.
type Metadata struct {
	ProcessingTimeMS int64    `json:"processing_time_ms"`
	TokensUsed       int      `json:"tokens_used,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
}

// Response wraps a stage result. Data is the zero value of T when the
// operation produced nothing.
type Response[T any] struct {
	Data     T        `json:"data"`
	Error    string   `json:"error,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// OK builds a successful response.
func OK[T any](data T, meta Metadata) Response[T] {
	return Response[T]{Data: data, Metadata: meta}
}

// Fail builds a failed response with zero data.
func Fail[T any](errMsg string, meta Metadata) Response[T] {
	var zero T
	return Response[T]{Data: zero, Error: errMsg, Metadata: meta}
}

// Failed reports whether the response carries an error.
func (r Response[T]) Failed() bool {
	return r.Error != ""
}

// Timer measures stage processing time for envelope metadata.
type Timer struct {
	start time.Time
}

// StartTimer begins timing a stage operation.
func StartTimer() Timer {
	return Timer{start: time.Now()}
}

// Meta returns metadata with the elapsed time filled in.
func (t Timer) Meta() Metadata {
	return Metadata{ProcessingTimeMS: time.Since(t.start).Milliseconds()}
}

// MetaWithTokens returns metadata with elapsed time and token usage.
func (t Timer) MetaWithTokens(tokens int) Metadata {
	m := t.Meta()
	m.TokensUsed = tokens
	return m
}

// MetaWithConfidence returns metadata with elapsed time, token usage,
// and an overall confidence for the operation.
func (t Timer) MetaWithConfidence(tokens int, confidence float64) Metadata {
	m := t.MetaWithTokens(tokens)
	m.Confidence = &confidence
	return m
}
