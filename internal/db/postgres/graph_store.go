package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flowcanvas/internal/domain/editor/model"
)

// GraphStore PostgreSQL 图存储。节点/链接以 jsonb 保存，
// 节点的后端标识在保存时由这里分配。
type GraphStore struct {
	db *sql.DB
}

// NewGraphStore 创建 PostgreSQL 图存储。
func NewGraphStore(db *sql.DB) *GraphStore {
	return &GraphStore{db: db}
}

// EnsureTables 确保 graphs 表存在。
func (s *GraphStore) EnsureTables(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS graphs (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name        VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_template BOOLEAN NOT NULL DEFAULT FALSE,
		nodes       JSONB NOT NULL DEFAULT '[]',
		links       JSONB NOT NULL DEFAULT '[]',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_graphs_updated ON graphs(updated_at DESC);
	`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// CreateGraph 保存新图：分配图标识，并为每个节点分配全新的后端标识，
// 链接端点同步重映射。返回保存后的完整图。
func (s *GraphStore) CreateGraph(ctx context.Context, g *model.Graph) (*model.Graph, error) {
	saved := assignNodeIDs(g, nil)
	saved.ID = uuid.New().String()

	nodesJSON, linksJSON, err := marshalGraph(saved)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO graphs (id, name, description, is_template, nodes, links) VALUES ($1, $2, $3, $4, $5, $6)`,
		saved.ID, saved.Name, saved.Description, saved.IsTemplate, nodesJSON, linksJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("insert graph: %w", err)
	}
	return saved, nil
}

// UpdateGraph 覆盖保存：已知节点保留原标识，新节点分配全新标识。
// 保存总是提交完整集合，不做局部覆盖。
func (s *GraphStore) UpdateGraph(ctx context.Context, id string, g *model.Graph) (*model.Graph, error) {
	prev, err := s.GetGraph(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, fmt.Errorf("graph %s not found", id)
	}

	known := make(map[string]bool, len(prev.Nodes))
	for _, n := range prev.Nodes {
		known[n.ID] = true
	}
	saved := assignNodeIDs(g, known)
	saved.ID = id

	nodesJSON, linksJSON, err := marshalGraph(saved)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE graphs SET name = $2, description = $3, is_template = $4, nodes = $5, links = $6, updated_at = $7 WHERE id = $1`,
		id, saved.Name, saved.Description, saved.IsTemplate, nodesJSON, linksJSON, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("update graph: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("graph %s not found", id)
	}
	return saved, nil
}

// GetGraph 按标识读取图，不存在时返回 (nil, nil)。
func (s *GraphStore) GetGraph(ctx context.Context, id string) (*model.Graph, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, is_template, nodes, links FROM graphs WHERE id = $1`, id)

	var (
		g         model.Graph
		nodesJSON []byte
		linksJSON []byte
	)
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.IsTemplate, &nodesJSON, &linksJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get graph: %w", err)
	}
	if err := json.Unmarshal(nodesJSON, &g.Nodes); err != nil {
		return nil, fmt.Errorf("decode graph nodes: %w", err)
	}
	if err := json.Unmarshal(linksJSON, &g.Links); err != nil {
		return nil, fmt.Errorf("decode graph links: %w", err)
	}
	return &g, nil
}

// ListGraphs 返回全部图（节选字段），按更新时间倒序。
func (s *GraphStore) ListGraphs(ctx context.Context) ([]*model.Graph, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, is_template FROM graphs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()

	var out []*model.Graph
	for rows.Next() {
		var g model.Graph
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.IsTemplate); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

// DeleteGraph 删除图。
func (s *GraphStore) DeleteGraph(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM graphs WHERE id = $1`, id)
	return err
}

// assignNodeIDs 为未知节点分配全新的后端标识并重映射链接端点。
// known 为 nil 时（创建）所有节点都视为新节点。
func assignNodeIDs(g *model.Graph, known map[string]bool) *model.Graph {
	out := &model.Graph{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		IsTemplate:  g.IsTemplate,
		Nodes:       make([]model.GraphNode, len(g.Nodes)),
		Links:       make([]model.Link, len(g.Links)),
	}

	remap := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		fresh := n.ID
		if fresh == "" || known == nil || !known[fresh] {
			fresh = uuid.New().String()
		}
		remap[n.ID] = fresh
		out.Nodes[i] = n
		out.Nodes[i].ID = fresh
	}

	for i, l := range g.Links {
		out.Links[i] = l
		if fresh, ok := remap[l.SourceID]; ok {
			out.Links[i].SourceID = fresh
		}
		if fresh, ok := remap[l.SinkID]; ok {
			out.Links[i].SinkID = fresh
		}
	}

	// input_nodes/output_nodes 引用同一批节点，端点一并重映射
	for i := range out.Nodes {
		out.Nodes[i].InputNodes = remapRefs(out.Nodes[i].InputNodes, remap)
		out.Nodes[i].OutputNodes = remapRefs(out.Nodes[i].OutputNodes, remap)
	}
	return out
}

func remapRefs(refs map[string]string, remap map[string]string) map[string]string {
	if refs == nil {
		return nil
	}
	out := make(map[string]string, len(refs))
	for handle, id := range refs {
		if fresh, ok := remap[id]; ok {
			out[handle] = fresh
			continue
		}
		out[handle] = id
	}
	return out
}

func marshalGraph(g *model.Graph) ([]byte, []byte, error) {
	nodesJSON, err := json.Marshal(g.Nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("encode graph nodes: %w", err)
	}
	linksJSON, err := json.Marshal(g.Links)
	if err != nil {
		return nil, nil, fmt.Errorf("encode graph links: %w", err)
	}
	return nodesJSON, linksJSON, nil
}
