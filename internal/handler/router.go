package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	catalogHandler "github.com/zhouzirui/course-advisor/backend/internal/handler/catalog"
	"github.com/zhouzirui/course-advisor/backend/internal/handler/chat"
	"github.com/zhouzirui/course-advisor/backend/internal/handler/stream"
	"github.com/zhouzirui/course-advisor/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/course-advisor/backend/internal/middleware"
	"github.com/zhouzirui/course-advisor/backend/internal/model/catalog"
	"github.com/zhouzirui/course-advisor/backend/internal/observability"
	advisorService "github.com/zhouzirui/course-advisor/backend/internal/service/advisor"
	chatService "github.com/zhouzirui/course-advisor/backend/internal/service/chat"
	"github.com/zhouzirui/course-advisor/backend/internal/service/document"
	"github.com/zhouzirui/course-advisor/backend/pkg/utils"
)

// Options toggles optional surfaces of the router.
type Options struct {
	Models    []string
	Streaming bool
	Metrics   bool
}

// NewRouter wires HTTP routes to core services. advisorSvc may be nil when no completion backend
// is configured; question endpoints then answer 503.
func NewRouter(store catalog.Store, chatSvc *chatService.Service, advisorSvc *advisorService.Service, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"catalog": store.Available(),
			"advisor": advisorSvc != nil,
		})
	})
	if opts.Metrics {
		r.Handle("/metrics", observability.MetricsHandler())
	}

	// Create handlers
	catalogH := catalogHandler.New(store, opts.Models)
	chatH := chat.New(chatSvc, advisorSvc, document.NewExtractor())

	var streamH *stream.Handler
	if advisorSvc != nil {
		streamH = stream.New(advisorSvc, opts.Streaming)
	}

	r.Route("/api", func(api chi.Router) {
		catalogH.RegisterRoutes(api)
		chatH.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if streamH == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "advisor streaming unavailable")
				return
			}
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			// errors are already delivered to the client as an SSE error event
			if err := streamH.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})

		if advisorSvc != nil {
			ws.NewWebSocketHandler(advisorSvc, chatSvc, opts.Streaming).RegisterWebSocketRoutes(api)
		}
	})

	return r
}
