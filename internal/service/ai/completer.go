package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Options tune a single completion call.
type Options struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	// Purpose labels the call in metrics and traces ("answer", "summary"). It is not sent upstream.
	Purpose string
}

// Completer sends a prompt to a hosted model and returns the generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// StreamCompleter is implemented by backends that can emit partial output.
type StreamCompleter interface {
	Completer
	CompleteStream(ctx context.Context, prompt string, opts Options, onDelta func(string)) (string, error)
}

// ErrorKind classifies completion failures.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindAuth      ErrorKind = "auth"
	KindThrottled ErrorKind = "throttled"
	KindMalformed ErrorKind = "malformed"
	KindUnknown   ErrorKind = "unknown"
)

// CompletionError reports a failed call to the completion backend.
type CompletionError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// IsCompletionError reports whether err carries a CompletionError.
func IsCompletionError(err error) bool {
	var ce *CompletionError
	return errors.As(err, &ce)
}

func newCompletionError(provider string, kind ErrorKind, err error) error {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return err
	}
	return &CompletionError{Provider: provider, Kind: kind, Err: err}
}

// classifyTransport maps context and network failures; everything else is unknown.
func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnknown
}
