package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/zhouzirui/course-advisor/backend/internal/service/advisor"
	"github.com/zhouzirui/course-advisor/backend/pkg/utils"
)

// Asker answers a question for a session.
type Asker interface {
	Ask(ctx context.Context, sessionID, question string, opts ...advisor.AskOption) (advisor.Reply, error)
}

// Handler manages streaming advisor responses via Server-Sent Events
type Handler struct {
	advisor   Asker
	streaming bool
}

// New creates a new stream handler. With streaming off the answer arrives as a single message event.
func New(asker Asker, streaming bool) *Handler {
	return &Handler{
		advisor:   asker,
		streaming: streaming,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event      string `json:"event"`
	Content    string `json:"content,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	Finished   bool   `json:"finished,omitempty"`
	Summarized bool   `json:"summarized,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HandleStreamRequest answers userMessage for the session, emitting start, delta, message and
// end events. Failures are reported as an error event. When the client cannot be written to the
// question is not asked, and deltas stop after the first failed write.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	if err := h.sendSSE(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
	}); err != nil {
		return err
	}

	var opts []advisor.AskOption
	if h.streaming {
		disconnected := false
		opts = append(opts, advisor.WithDeltaHandler(func(delta string) {
			if disconnected {
				return
			}
			if err := h.sendSSE(w, flusher, StreamResponse{
				Event:     "delta",
				SessionID: sessionID,
				Content:   delta,
			}); err != nil {
				disconnected = true
				log.Printf("[stream] dropping deltas for session=%s: %v", sessionID, err)
			}
		}))
	}

	reply, err := h.advisor.Ask(ctx, sessionID, userMessage, opts...)
	if err != nil {
		h.sendSSEError(w, flusher, sessionID, err.Error())
		return err
	}
	if reply.Failed {
		h.sendSSEError(w, flusher, sessionID, reply.Turn.Content)
		return nil
	}

	if err := h.sendSSE(w, flusher, StreamResponse{
		Event:      "message",
		SessionID:  sessionID,
		Content:    reply.Turn.Content,
		Summarized: reply.Summarized,
	}); err != nil {
		return err
	}

	// Send completion signal
	if err := h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	}); err != nil {
		return err
	}

	log.Printf("[stream] completed response for session=%s", sessionID)
	return nil
}

// sendSSE sends a Server-Sent Event
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) error {
	if err := utils.SendSSEChunk(w, flusher, response); err != nil {
		return fmt.Errorf("send %s event: %w", response.Event, err)
	}
	return nil
}

// sendSSEError sends an error via Server-Sent Events
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, sessionID, errorMsg string) {
	_ = h.sendSSE(w, flusher, StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     errorMsg,
		Finished:  true,
	})
}
