package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"flowcanvas/internal/domain/editor/model"
)

// memRepo 内存图仓库。
type memRepo struct {
	graphs map[string]*model.Graph
	seq    int
}

func newMemRepo() *memRepo { return &memRepo{graphs: make(map[string]*model.Graph)} }

func (m *memRepo) CreateGraph(_ context.Context, g *model.Graph) (*model.Graph, error) {
	m.seq++
	saved := *g
	saved.ID = fmt.Sprintf("g-%d", m.seq)
	m.graphs[saved.ID] = &saved
	return &saved, nil
}

func (m *memRepo) UpdateGraph(_ context.Context, id string, g *model.Graph) (*model.Graph, error) {
	if _, ok := m.graphs[id]; !ok {
		return nil, fmt.Errorf("graph %s not found", id)
	}
	saved := *g
	saved.ID = id
	m.graphs[id] = &saved
	return &saved, nil
}

func (m *memRepo) GetGraph(_ context.Context, id string) (*model.Graph, error) {
	return m.graphs[id], nil
}

func (m *memRepo) ListGraphs(_ context.Context) ([]*model.Graph, error) {
	out := make([]*model.Graph, 0, len(m.graphs))
	for _, g := range m.graphs {
		out = append(out, g)
	}
	return out, nil
}

func (m *memRepo) DeleteGraph(_ context.Context, id string) error {
	delete(m.graphs, id)
	return nil
}

// memPublisher 记录发布调用。
type memPublisher struct {
	runID string
	batch []model.ExecutionResult
}

func (m *memPublisher) Publish(_ context.Context, runID string, batch []model.ExecutionResult) error {
	m.runID = runID
	m.batch = batch
	return nil
}

func newTestRouter(repo GraphRepository, pub ResultPublisher) http.Handler {
	r := chi.NewRouter()
	NewGraphHandler(repo, pub).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var envelope APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope failed: %v (body: %s)", err, rec.Body.String())
	}
	return rec, envelope
}

// TestCreateAndGetGraph 创建图后按标识读取。
func TestCreateAndGetGraph(t *testing.T) {
	h := newTestRouter(newMemRepo(), nil)

	rec, envelope := doRequest(t, h, http.MethodPost, "/api/v1/graphs", &model.Graph{
		Name:  "demo",
		Nodes: []model.GraphNode{{ID: "n1", BlockID: "sum"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, envelope.Message)
	}

	raw, _ := json.Marshal(envelope.Data)
	var created model.Graph
	json.Unmarshal(raw, &created)
	if created.ID == "" {
		t.Fatal("expected server-assigned graph id")
	}

	rec, envelope = doRequest(t, h, http.MethodGet, "/api/v1/graphs/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, envelope.Message)
	}
	t.Log("✅ graph create/get round-trip")
}

// TestCreateGraphValidation 缺名字的创建请求返回 400。
func TestCreateGraphValidation(t *testing.T) {
	h := newTestRouter(newMemRepo(), nil)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/graphs", &model.Graph{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// TestGetMissingGraph 不存在的图返回 404。
func TestGetMissingGraph(t *testing.T) {
	h := newTestRouter(newMemRepo(), nil)

	rec, _ := doRequest(t, h, http.MethodGet, "/api/v1/graphs/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// TestListGraphsTemplateFilter ?template 按模板标记过滤图列表。
func TestListGraphsTemplateFilter(t *testing.T) {
	h := newTestRouter(newMemRepo(), nil)

	if rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/graphs", &model.Graph{Name: "plain"}); rec.Code != http.StatusCreated {
		t.Fatalf("create plain graph failed: %d", rec.Code)
	}
	if rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/graphs", &model.Graph{Name: "tpl", IsTemplate: true}); rec.Code != http.StatusCreated {
		t.Fatalf("create template graph failed: %d", rec.Code)
	}

	rec, envelope := doRequest(t, h, http.MethodGet, "/api/v1/graphs?template=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	raw, _ := json.Marshal(envelope.Data)
	var list []*model.Graph
	json.Unmarshal(raw, &list)
	if len(list) != 1 || !list[0].IsTemplate || list[0].Name != "tpl" {
		t.Fatalf("expected only the template graph, got %+v", list)
	}

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/graphs?template=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed filter, got %d", rec.Code)
	}
}

// TestGetBlocks 块目录返回内建块。
func TestGetBlocks(t *testing.T) {
	h := newTestRouter(newMemRepo(), nil)

	rec, envelope := doRequest(t, h, http.MethodGet, "/api/v1/blocks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	raw, _ := json.Marshal(envelope.Data)
	var list []*model.Block
	json.Unmarshal(raw, &list)
	if len(list) == 0 {
		t.Fatal("expected builtin blocks in catalog")
	}
}

// TestPublishResults 执行结果上报被转发到事件流。
func TestPublishResults(t *testing.T) {
	pub := &memPublisher{}
	h := newTestRouter(newMemRepo(), pub)

	batch := []model.ExecutionResult{{
		NodeID:     "be-1",
		Status:     model.StatusCompleted,
		OutputData: map[string][]any{"out": {5}},
	}}
	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/runs/run-1/results", batch)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if pub.runID != "run-1" || len(pub.batch) != 1 {
		t.Fatalf("publish not forwarded: run=%s batch=%d", pub.runID, len(pub.batch))
	}
}

// TestPublishWithoutFeed 未配置事件流时上报返回 503。
func TestPublishWithoutFeed(t *testing.T) {
	h := newTestRouter(newMemRepo(), nil)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/runs/run-1/results", []model.ExecutionResult{})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
