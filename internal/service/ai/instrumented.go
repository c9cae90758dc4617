package ai

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/course-advisor/backend/internal/observability"
)

// Instrumented wraps a Completer with a per-call timeout, an optional shared rate limiter,
// tracing and metrics. It makes exactly one attempt per call.
type Instrumented struct {
	next     Completer
	provider string
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewInstrumented wraps next. limiter may be nil and timeout may be zero.
func NewInstrumented(next Completer, provider string, limiter *rate.Limiter, timeout time.Duration) *Instrumented {
	return &Instrumented{next: next, provider: provider, limiter: limiter, timeout: timeout}
}

// Complete implements Completer.
func (c *Instrumented) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return c.do(ctx, prompt, opts, func(ctx context.Context) (string, error) {
		return c.next.Complete(ctx, prompt, opts)
	})
}

// CompleteStream implements StreamCompleter. Backends without streaming deliver the whole
// reply as a single delta.
func (c *Instrumented) CompleteStream(ctx context.Context, prompt string, opts Options, onDelta func(string)) (string, error) {
	return c.do(ctx, prompt, opts, func(ctx context.Context) (string, error) {
		if streamer, ok := c.next.(StreamCompleter); ok {
			return streamer.CompleteStream(ctx, prompt, opts, onDelta)
		}
		text, err := c.next.Complete(ctx, prompt, opts)
		if err == nil && text != "" && onDelta != nil {
			onDelta(text)
		}
		return text, err
	})
}

func (c *Instrumented) do(ctx context.Context, prompt string, opts Options, call func(context.Context) (string, error)) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	purpose := opts.Purpose
	if purpose == "" {
		purpose = "answer"
	}

	ctx, span := observability.StartSpan(ctx, "llm."+c.provider+".completion",
		attribute.String("llm.provider", c.provider),
		attribute.String("llm.purpose", purpose),
		attribute.Int("llm.max_tokens", opts.MaxTokens),
		attribute.Float64("llm.temperature", float64(opts.Temperature)),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)
	defer span.End()

	start := time.Now()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			err = newCompletionError(c.provider, KindThrottled, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observability.RecordCompletion(c.provider, purpose, "throttled", time.Since(start))
			return "", err
		}
	}

	text, err := call(ctx)
	if err != nil {
		err = newCompletionError(c.provider, classifyTransport(err), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordCompletion(c.provider, purpose, "error", time.Since(start))
		return "", err
	}

	span.SetAttributes(attribute.Int("llm.reply_chars", len(text)))
	observability.RecordCompletion(c.provider, purpose, "ok", time.Since(start))
	return text, nil
}
