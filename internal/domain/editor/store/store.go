// Package store 维护可编辑图的规范集合：节点、边以及派生的节点连接列表。
// 所有组件只通过这里的变更接口访问图数据，不持有第二份可变视图。
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/domain/editor/typefmt"
)

var (
	ErrNodeExists      = errors.New("node already exists")
	ErrNodeNotFound    = errors.New("node not found")
	ErrEdgeExists      = errors.New("edge already exists")
	ErrMissingEndpoint = errors.New("edge endpoint missing")
)

// Store 图模型存储。所有变更对调用方同步生效，任何改变图形状的操作
// 都会使上一次执行的可视状态失效。
type Store struct {
	nodes map[string]*model.Node
	edges map[string]*model.Edge
	log   *slog.Logger
}

// New 创建空的图模型存储。
func New(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		nodes: make(map[string]*model.Node),
		edges: make(map[string]*model.Edge),
		log:   log,
	}
}

// AddNode 插入节点。节点的连接列表由 AddEdge 维护，插入时重置。
func (s *Store) AddNode(n *model.Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("add node: id is required")
	}
	if _, ok := s.nodes[n.ID]; ok {
		return fmt.Errorf("add node %s: %w", n.ID, ErrNodeExists)
	}
	c := n.Clone()
	c.Connections = nil
	s.nodes[c.ID] = c
	s.invalidateExecutionState()
	return nil
}

// RemoveNodes 删除节点并级联删除所有触及它们的边。
// 返回被删除的节点与边的快照（供历史回滚重建）。
func (s *Store) RemoveNodes(ids ...string) ([]*model.Node, []*model.Edge) {
	var removedNodes []*model.Node
	removing := make(map[string]bool, len(ids))
	for _, id := range ids {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		removing[id] = true
		removedNodes = append(removedNodes, n.Clone())
	}
	if len(removedNodes) == 0 {
		return nil, nil
	}

	var edgeIDs []string
	for id, e := range s.edges {
		if removing[e.Source] || removing[e.Target] {
			edgeIDs = append(edgeIDs, id)
		}
	}
	sort.Strings(edgeIDs)
	removedEdges := s.removeEdgesByID(edgeIDs)

	for id := range removing {
		delete(s.nodes, id)
	}
	s.invalidateExecutionState()
	return removedNodes, removedEdges
}

// AddEdge 连接两个手柄。端点缺失时拒绝；边标识由端点四元组确定性导出。
// 连线颜色取源节点输出模式中该手柄的类型。
func (s *Store) AddEdge(source, sourceHandle, target, targetHandle string) (*model.Edge, error) {
	if source == "" || target == "" {
		return nil, fmt.Errorf("add edge: %w", ErrMissingEndpoint)
	}
	src, ok := s.nodes[source]
	if !ok {
		return nil, fmt.Errorf("add edge: source %s: %w", source, ErrNodeNotFound)
	}
	if _, ok := s.nodes[target]; !ok {
		return nil, fmt.Errorf("add edge: target %s: %w", target, ErrNodeNotFound)
	}

	id := model.EdgeID(source, sourceHandle, target, targetHandle)
	if _, ok := s.edges[id]; ok {
		return nil, fmt.Errorf("add edge %s: %w", id, ErrEdgeExists)
	}

	e := &model.Edge{
		ID:           id,
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
		Color:        typefmt.Color(src.OutputSchema.PropertyType(sourceHandle)),
	}
	s.edges[id] = e
	// 每条触及节点的边恰好对应一条连接记录，自环只登记一次
	s.appendRef(source, e.Ref())
	if target != source {
		s.appendRef(target, e.Ref())
	}
	s.invalidateExecutionState()
	return e.Clone(), nil
}

// RemoveEdges 删除指定边，返回被删除边的快照。
func (s *Store) RemoveEdges(ids ...string) []*model.Edge {
	removed := s.removeEdgesByID(ids)
	if len(removed) > 0 {
		s.invalidateExecutionState()
	}
	return removed
}

func (s *Store) removeEdgesByID(ids []string) []*model.Edge {
	var removed []*model.Edge
	for _, id := range ids {
		e, ok := s.edges[id]
		if !ok {
			continue
		}
		removed = append(removed, e.Clone())
		delete(s.edges, id)
		s.dropRef(e.Source, id)
		s.dropRef(e.Target, id)
	}
	return removed
}

// MoveNode 更新节点位置。位置变化不影响执行可视状态。
func (s *Store) MoveNode(id string, pos model.Position) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("move node %s: %w", id, ErrNodeNotFound)
	}
	n.Position = pos
	return nil
}

// SetConfiguredValue 更新节点的单个配置值。value 为 nil 时删除该键。
func (s *Store) SetConfiguredValue(id, key string, value any) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("update node %s: %w", id, ErrNodeNotFound)
	}
	if value == nil {
		delete(n.ConfiguredValues, key)
		return nil
	}
	if n.ConfiguredValues == nil {
		n.ConfiguredValues = make(map[string]any)
	}
	n.ConfiguredValues[key] = value
	return nil
}

// SetValidationErrors 写入校验结果（覆盖旧结果）。
func (s *Store) SetValidationErrors(id string, errs map[string]string) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("validate node %s: %w", id, ErrNodeNotFound)
	}
	n.ValidationErrors = errs
	return nil
}

// SetBackendID 绑定后端标识。已绑定的节点不允许改指其他后端实体。
func (s *Store) SetBackendID(id, backendID string) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("bind node %s: %w", id, ErrNodeNotFound)
	}
	if n.BackendID != "" && n.BackendID != backendID {
		return fmt.Errorf("bind node %s: backend id already set to %s", id, n.BackendID)
	}
	n.BackendID = backendID
	return nil
}

// SetNodeVisual 一次性写入节点的可视执行状态（状态、最近输出、输出面板开关）。
func (s *Store) SetNodeVisual(id string, status model.ExecutionStatus, lastOutput map[string][]any, open bool) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node visual %s: %w", id, ErrNodeNotFound)
	}
	n.Status = status
	n.LastOutput = lastOutput
	n.OutputOpen = open
	return nil
}

// PushBead 在边上登记一个产出的值：beadUp 自增，值压入队首（最新在前）。
func (s *Store) PushBead(edgeID string, value any) bool {
	e, ok := s.edges[edgeID]
	if !ok {
		return false
	}
	e.BeadUp++
	e.BeadQueue = append([]any{value}, e.BeadQueue...)
	return true
}

// PopBead 尝试消费边上最旧的值：仅当队尾等于 value 时弹出并使 beadDown 自增。
// 不匹配时不做任何事（同名手柄可挂多条边，消费未必属于本边）。
func (s *Store) PopBead(edgeID string, value any) bool {
	e, ok := s.edges[edgeID]
	if !ok || len(e.BeadQueue) == 0 {
		return false
	}
	oldest := e.BeadQueue[len(e.BeadQueue)-1]
	if !reflect.DeepEqual(oldest, value) {
		return false
	}
	e.BeadQueue = e.BeadQueue[:len(e.BeadQueue)-1]
	e.BeadDown++
	return true
}

// ResetExecutionState 清空全部执行可视状态：节点状态与输出、边的令牌计数。
// 新一轮执行开始时由会话显式调用。
func (s *Store) ResetExecutionState() {
	s.invalidateExecutionState()
}

func (s *Store) invalidateExecutionState() {
	for _, n := range s.nodes {
		n.Status = model.StatusNone
		n.LastOutput = nil
		n.OutputOpen = false
	}
	for _, e := range s.edges {
		e.BeadUp = 0
		e.BeadDown = 0
		e.BeadQueue = nil
	}
}

// Node 按编辑器本地标识查找节点。
func (s *Store) Node(id string) (*model.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// NodeByBackendID 按后端标识查找节点，未绑定的节点不参与匹配。
func (s *Store) NodeByBackendID(backendID string) (*model.Node, bool) {
	if backendID == "" {
		return nil, false
	}
	for _, n := range s.nodes {
		if n.BackendID == backendID {
			return n, true
		}
	}
	return nil, false
}

// Edge 按标识查找边。
func (s *Store) Edge(id string) (*model.Edge, bool) {
	e, ok := s.edges[id]
	return e, ok
}

// Nodes 返回全部节点，按标识排序保证遍历确定性。
func (s *Store) Nodes() []*model.Node {
	out := make([]*model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges 返回全部边，按标识排序。
func (s *Store) Edges() []*model.Edge {
	out := make([]*model.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EdgesFrom 返回以 (node, handle) 为源的全部边。
func (s *Store) EdgesFrom(nodeID, handle string) []*model.Edge {
	var out []*model.Edge
	for _, e := range s.Edges() {
		if e.Source == nodeID && e.SourceHandle == handle {
			out = append(out, e)
		}
	}
	return out
}

// EdgesTo 返回以 (node, handle) 为汇的全部边。
func (s *Store) EdgesTo(nodeID, handle string) []*model.Edge {
	var out []*model.Edge
	for _, e := range s.Edges() {
		if e.Target == nodeID && e.TargetHandle == handle {
			out = append(out, e)
		}
	}
	return out
}

// Len 返回 (节点数, 边数)。
func (s *Store) Len() (int, int) {
	return len(s.nodes), len(s.edges)
}

func (s *Store) appendRef(nodeID string, ref model.ConnectionRef) {
	n := s.nodes[nodeID]
	n.Connections = append(n.Connections, ref)
}

func (s *Store) dropRef(nodeID, edgeID string) {
	n, ok := s.nodes[nodeID]
	if !ok {
		return
	}
	refs := n.Connections[:0]
	for _, r := range n.Connections {
		if r.EdgeID != edgeID {
			refs = append(refs, r)
		}
	}
	if len(refs) == 0 {
		n.Connections = nil
		return
	}
	n.Connections = refs
}
