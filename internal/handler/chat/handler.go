package chat

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/course-advisor/backend/internal/handler/apierr"
	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
	"github.com/zhouzirui/course-advisor/backend/internal/service/advisor"
	chatService "github.com/zhouzirui/course-advisor/backend/internal/service/chat"
	"github.com/zhouzirui/course-advisor/backend/internal/service/document"
	"github.com/zhouzirui/course-advisor/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc    *chatService.Service
	advisorSvc *advisor.Service
	extractor  document.Extractor
}

// New 创建聊天处理器. advisorSvc may be nil when no completion backend is configured.
func New(chatSvc *chatService.Service, advisorSvc *advisor.Service, extractor document.Extractor) *Handler {
	if extractor == nil {
		extractor = document.NewExtractor()
	}
	return &Handler{
		chatSvc:    chatSvc,
		advisorSvc: advisorSvc,
		extractor:  extractor,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Patch("/", h.handleUpdateSession)
		r.Delete("/", h.handleDeleteSession)
		r.Get("/messages", h.handleListMessages)
		r.Post("/ask", h.handleAsk)
		r.Get("/summary", h.handleSummary)
		r.Get("/documents", h.handleListDocuments)
		r.Post("/documents", h.handleUploadDocuments)
	})
}

// handleCreateSession 登录并创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string    `json:"username"`
		Password string    `json:"password"`
		Mode     chat.Mode `json:"mode"`
		Model    string    `json:"model"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity := chat.Identity{Username: payload.Username, Password: payload.Password}
	session, err := h.chatSvc.CreateSession(r.Context(), identity, payload.Mode, payload.Model)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	log.Printf("[chat] session created id=%s user=%s mode=%s", session.ID, session.Username, session.Mode)
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleUpdateSession 切换上下文模式或模型
func (h *Handler) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mode  *chat.Mode `json:"mode"`
		Model *string    `json:"model"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.UpdateSession(r.Context(), chi.URLParam(r, "sessionID"), chatService.SessionUpdate{
		Mode:    payload.Mode,
		ModelID: payload.Model,
	})
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleDeleteSession 退出登录
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.DeleteSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	log.Printf("[chat] session closed id=%s", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

type messageView struct {
	Role      chat.Role `json:"role"`
	Content   string    `json:"content"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleListMessages 返回会话记录, 每条附带渲染后的 HTML
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	turns, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	views := make([]messageView, 0, len(turns))
	for _, turn := range turns {
		html, err := utils.RenderMarkdown(turn.Content)
		if err != nil {
			log.Printf("[chat] render markdown failed: %v", err)
		}
		views = append(views, messageView{
			Role:      turn.Role,
			Content:   turn.Content,
			HTML:      html,
			CreatedAt: turn.CreatedAt,
		})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

// handleAsk 提问并同步返回回答
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	if h.advisorSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "advisor unavailable")
		return
	}

	var payload struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.advisorSvc.Ask(r.Context(), chi.URLParam(r, "sessionID"), payload.Question)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.chatSvc.Summary(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.chatSvc.Documents(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, docs)
}

// handleUploadDocuments 上传文档并抽取文本, 表单字段为 files
func (h *Handler) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	files := make([]document.File, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, document.File{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	docs := document.ExtractAll(h.extractor, files)
	if err := h.chatSvc.AddDocuments(r.Context(), sessionID, docs...); err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	stored, err := h.chatSvc.Documents(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	log.Printf("[chat] session=%s uploaded %d files, %d documents stored", sessionID, len(files), len(stored))
	utils.RespondJSON(w, http.StatusCreated, stored)
}
