package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/course-advisor/backend/internal/model/catalog"
	"github.com/zhouzirui/course-advisor/backend/pkg/utils"
)

// Handler 课程目录的HTTP处理器
type Handler struct {
	store  catalog.Store
	models []string
}

// New 创建课程目录处理器. models lists the selectable model ids, default first.
func New(store catalog.Store, models []string) *Handler {
	return &Handler{
		store:  store,
		models: append([]string(nil), models...),
	}
}

// RegisterRoutes 注册课程目录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog", h.handleCatalog)
	r.Get("/models", h.handleModels)
}

type catalogView struct {
	Available bool               `json:"available"`
	Courses   []catalog.Course   `json:"courses"`
	Plan      []catalog.YearPlan `json:"plan"`
	Labels    map[string]string  `json:"labels"`
}

// handleCatalog 返回课程列表与推荐学习计划
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	view := catalogView{
		Available: h.store.Available(),
		Courses:   h.store.Courses(),
		Plan:      []catalog.YearPlan{},
		Labels:    map[string]string{},
	}
	if view.Courses == nil {
		view.Courses = []catalog.Course{}
	}
	if structure, ok := h.store.Structure(); ok {
		view.Plan = structure.Years
		for _, year := range structure.Years {
			view.Labels[year.Key] = year.Label()
		}
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// handleModels 返回可选择的模型
func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	defaultModel := ""
	if len(h.models) > 0 {
		defaultModel = h.models[0]
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"models":  h.models,
		"default": defaultModel,
	})
}
