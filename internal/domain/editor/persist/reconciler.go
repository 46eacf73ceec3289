// Package persist 负责图的序列化保存与后端标识回填。
// 保存总是提交完整的节点/边集合；保存响应按 (blockId, position)
// 组合键把后端分配的节点标识挂回对应的编辑器节点。
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/domain/editor/port"
	"flowcanvas/internal/domain/editor/store"
)

// Reconciler 持久化协调器。记录最近一次成功保存的载荷，
// 载荷未变化时保存为幂等 no-op。
type Reconciler struct {
	api       port.GraphAPI
	log       *slog.Logger
	graphID   string
	lastSaved *model.Graph
}

// New 创建协调器。
func New(api port.GraphAPI, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{api: api, log: log}
}

// GraphID 返回当前绑定的后端图标识（首次保存前为空）。
func (r *Reconciler) GraphID() string { return r.graphID }

// Bind 绑定已存在的后端图（加载已保存的图时调用）。
func (r *Reconciler) Bind(graphID string, saved *model.Graph) {
	r.graphID = graphID
	r.lastSaved = saved
}

// Save 序列化当前图并保存。载荷与上次成功保存相同则跳过网络写入，
// 返回 (已保存的图, 是否真正发起保存, 错误)。
// 传输失败不改动内存中的图，也不影响命令历史，由调用方决定是否重试。
func (r *Reconciler) Save(ctx context.Context, st *store.Store, name, description string) (*model.Graph, bool, error) {
	payload := BuildPayload(st, name, description)
	payload.ID = r.graphID

	if r.lastSaved != nil && payloadEqual(payload, r.lastSaved) {
		r.log.Debug("graph unchanged since last save, skipping")
		return r.lastSaved, false, nil
	}

	var (
		saved *model.Graph
		err   error
	)
	if r.graphID == "" {
		saved, err = r.api.CreateGraph(ctx, payload)
	} else {
		saved, err = r.api.UpdateGraph(ctx, r.graphID, payload)
	}
	if err != nil {
		return nil, false, fmt.Errorf("save graph: %w", err)
	}

	r.graphID = saved.ID
	r.reconcile(st, saved)

	// 回填后端标识后重建载荷作为比较基线，后续未变化的保存才能命中跳过
	r.lastSaved = BuildPayload(st, name, description)
	r.lastSaved.ID = r.graphID
	return saved, true, nil
}

// BuildPayload 从存储构建线上格式载荷：
// 配置值剔除空串/空值并按模式过滤，输入/输出连接从边集合导出，
// 会话内的可视状态（执行状态、令牌计数）不进入持久化形态。
// input_nodes/output_nodes 以手柄为键，同名手柄挂多条边时只留最后一条；
// links 逐边保留，是连接的权威形态，这两个映射仅是兼容性摘要。
func BuildPayload(st *store.Store, name, description string) *model.Graph {
	nodes := st.Nodes()
	edges := st.Edges()

	g := &model.Graph{
		Name:        name,
		Description: description,
		Nodes:       make([]model.GraphNode, 0, len(nodes)),
		Links:       make([]model.Link, 0, len(edges)),
	}

	wireIDs := make(map[string]string, len(nodes))
	for _, n := range nodes {
		wireIDs[n.ID] = wireID(n)
	}

	for _, n := range nodes {
		wn := model.GraphNode{
			ID:           wireIDs[n.ID],
			BlockID:      n.BlockID,
			InputDefault: filterValues(n.InputSchema, stripEmpty(n.ConfiguredValues)),
			Metadata:     model.NodeMetadata{Position: n.Position},
		}
		for _, c := range n.Connections {
			if c.Target == n.ID {
				if wn.InputNodes == nil {
					wn.InputNodes = make(map[string]string)
				}
				wn.InputNodes[c.TargetHandle] = wireIDs[c.Source]
			}
			if c.Source == n.ID {
				if wn.OutputNodes == nil {
					wn.OutputNodes = make(map[string]string)
				}
				wn.OutputNodes[c.SourceHandle] = wireIDs[c.Target]
			}
		}
		g.Nodes = append(g.Nodes, wn)
	}

	for _, e := range edges {
		g.Links = append(g.Links, model.Link{
			SourceID:   wireIDs[e.Source],
			SinkID:     wireIDs[e.Target],
			SourceName: e.SourceHandle,
			SinkName:   e.TargetHandle,
		})
	}
	return g
}

// wireID 节点的线上标识：已绑定后端标识则用之，否则用编辑器本地标识。
func wireID(n *model.Node) string {
	if n.BackendID != "" {
		return n.BackendID
	}
	return n.ID
}

// stripEmpty 剔除空串与 nil 值（视为"未设置"，不保存哨兵空值），递归处理嵌套映射。
func stripEmpty(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			if tv == "" {
				continue
			}
			out[k] = tv
		case map[string]any:
			if sub := stripEmpty(tv); len(sub) > 0 {
				out[k] = sub
			}
		default:
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// filterValues 按模式过滤配置值：丢弃未声明的键，递归进入嵌套记录，
// 自由容器原样保留。
func filterValues(s *model.Schema, values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	if s == nil || s.IsFreeForm() || len(s.Properties) == 0 {
		return values
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		prop, ok := s.Properties[k]
		if !ok {
			continue
		}
		if sub, isMap := v.(map[string]any); isMap && prop != nil && prop.Type == "object" {
			if filtered := filterValues(prop, sub); len(filtered) > 0 {
				out[k] = filtered
			}
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// reconcile 把保存响应中后端分配的节点标识回填到编辑器节点。
// 匹配键为 (blockId, position) 组合——这是启发式而非同一性保证，
// 两个同块类型节点重叠在同一位置时无法正确区分。
func (r *Reconciler) reconcile(st *store.Store, saved *model.Graph) {
	type slot struct {
		id      string
		claimed bool
	}
	byKey := make(map[string][]*slot)
	known := make(map[string]bool)
	for _, n := range st.Nodes() {
		if n.BackendID != "" {
			known[n.BackendID] = true
		}
	}
	for i := range saved.Nodes {
		wn := &saved.Nodes[i]
		if known[wn.ID] {
			// 已绑定到某个编辑器节点的后端标识不参与再分配
			continue
		}
		k := reconcileKey(wn.BlockID, wn.Metadata.Position)
		byKey[k] = append(byKey[k], &slot{id: wn.ID})
	}

	for _, n := range st.Nodes() {
		if n.BackendID != "" {
			continue
		}
		k := reconcileKey(n.BlockID, n.Position)
		matched := false
		for _, s := range byKey[k] {
			if s.claimed {
				continue
			}
			s.claimed = true
			matched = true
			if err := st.SetBackendID(n.ID, s.id); err != nil {
				r.log.Warn("backend id bind rejected", "node", n.ID, "error", err)
			}
			break
		}
		if !matched {
			r.log.Warn("saved graph has no node matching editor node, identity kept unsaved",
				"node", n.ID, "block", n.BlockID)
		}
	}

	for _, slots := range byKey {
		for _, s := range slots {
			if !s.claimed {
				r.log.Debug("backend node not matched to any editor node, dropped", "backend_id", s.id)
			}
		}
	}
}

func reconcileKey(blockID string, pos model.Position) string {
	return fmt.Sprintf("%s|%.3f|%.3f", blockID, pos.X, pos.Y)
}

// payloadEqual 深度、顺序无关地比较两个载荷的节点与链接集合。
func payloadEqual(a, b *model.Graph) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name || a.Description != b.Description || a.IsTemplate != b.IsTemplate {
		return false
	}
	return canonNodes(a.Nodes) == canonNodes(b.Nodes) && canonLinks(a.Links) == canonLinks(b.Links)
}

// canonNodes 规范化节点集合：逐个序列化（encoding/json 对 map 键排序）、排序后拼接。
func canonNodes(nodes []model.GraphNode) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		raw, err := json.Marshal(n)
		if err != nil {
			return ""
		}
		parts = append(parts, string(raw))
	}
	sort.Strings(parts)
	return joinParts(parts)
}

func canonLinks(links []model.Link) string {
	parts := make([]string, 0, len(links))
	for _, l := range links {
		raw, err := json.Marshal(l)
		if err != nil {
			return ""
		}
		parts = append(parts, string(raw))
	}
	sort.Strings(parts)
	return joinParts(parts)
}

func joinParts(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p + "\n"
	}
	return out
}
