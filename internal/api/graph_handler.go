package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"flowcanvas/internal/domain/blocks"
	"flowcanvas/internal/domain/editor/model"
)

// GraphRepository 图存储接口（便于测试替换）。
type GraphRepository interface {
	CreateGraph(ctx context.Context, g *model.Graph) (*model.Graph, error)
	UpdateGraph(ctx context.Context, id string, g *model.Graph) (*model.Graph, error)
	GetGraph(ctx context.Context, id string) (*model.Graph, error)
	ListGraphs(ctx context.Context) ([]*model.Graph, error)
	DeleteGraph(ctx context.Context, id string) error
}

// ResultPublisher 执行结果发布接口。外部执行引擎上报的结果经此扇出到实时事件流。
type ResultPublisher interface {
	Publish(ctx context.Context, runID string, batch []model.ExecutionResult) error
}

// GraphHandler 图 API 处理器。
type GraphHandler struct {
	repo      GraphRepository
	publisher ResultPublisher
}

// NewGraphHandler 创建处理器。
func NewGraphHandler(repo GraphRepository, publisher ResultPublisher) *GraphHandler {
	return &GraphHandler{repo: repo, publisher: publisher}
}

// RegisterRoutes 注册路由。
func (h *GraphHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/graphs", func(r chi.Router) {
		r.Post("/", h.CreateGraph)
		r.Get("/", h.ListGraphs)
		r.Get("/{id}", h.GetGraph)
		r.Put("/{id}", h.UpdateGraph)
		r.Delete("/{id}", h.DeleteGraph)
	})
	r.Get("/api/v1/blocks", h.GetBlocks)
	r.Post("/api/v1/runs/{id}/results", h.PublishResults)
}

// --- Graph CRUD ---

func (h *GraphHandler) CreateGraph(w http.ResponseWriter, r *http.Request) {
	var g model.Graph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if g.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	saved, err := h.repo.CreateGraph(r.Context(), &g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create graph")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	g, err := h.repo.GetGraph(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get graph")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "graph not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ListGraphs 列出图。?template=true|false 按模板标记过滤，缺省返回全部。
func (h *GraphHandler) ListGraphs(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListGraphs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list graphs")
		return
	}
	if v := r.URL.Query().Get("template"); v != "" {
		want, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid template filter")
			return
		}
		filtered := make([]*model.Graph, 0, len(list))
		for _, g := range list {
			if g.IsTemplate == want {
				filtered = append(filtered, g)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *GraphHandler) UpdateGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var g model.Graph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	saved, err := h.repo.UpdateGraph(r.Context(), id, &g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update graph")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *GraphHandler) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.DeleteGraph(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete graph")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// --- Blocks & Runs ---

func (h *GraphHandler) GetBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, blocks.All())
}

// PublishResults 接收外部执行引擎上报的一批节点执行结果并发布到实时事件流。
func (h *GraphHandler) PublishResults(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	var batch []model.ExecutionResult
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if h.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "execution feed not configured")
		return
	}
	if err := h.publisher.Publish(r.Context(), runID, batch); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to publish results")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"published": len(batch)})
}
