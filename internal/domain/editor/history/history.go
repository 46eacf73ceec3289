// Package history 实现结构性编辑的 do/undo/redo 栈。
// 命令是带类型标签和可序列化快照的显式值，由唯一的执行器针对图模型存储解释，
// 不携带闭包，因此历史可以持久化、可以脱离环境状态测试。
package history

import (
	"fmt"
	"log/slog"

	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/domain/editor/store"
)

// Kind 命令类型标签。
type Kind string

const (
	KindAddNode     Kind = "add_node"
	KindRemoveNodes Kind = "remove_nodes"
	KindAddEdge     Kind = "add_edge"
	KindRemoveEdges Kind = "remove_edges"
	KindMoveNode    Kind = "move_node"
	KindPaste       Kind = "paste"
)

// Command 一次可逆的结构性编辑。Nodes/Edges 保存受影响实体的值快照，
// MoveNode 使用 NodeID/From/To。
type Command struct {
	Kind   Kind           `json:"kind"`
	Nodes  []model.Node   `json:"nodes,omitempty"`
	Edges  []model.Edge   `json:"edges,omitempty"`
	NodeID string         `json:"node_id,omitempty"`
	From   model.Position `json:"from,omitempty"`
	To     model.Position `json:"to,omitempty"`
}

// History 命令栈与游标。Push 记录一条已经生效的命令并截断重做尾部；
// Undo/Redo 通过执行器调用存储的变更接口，保证恢复后的状态与
// 一次全新的用户操作完全一致（包括连接列表与可视状态失效）。
type History struct {
	st     *store.Store
	stack  []Command
	cursor int // 指向下一条可重做命令的位置
	log    *slog.Logger
}

// New 创建绑定到指定存储的历史栈。
func New(st *store.Store, log *slog.Logger) *History {
	if log == nil {
		log = slog.Default()
	}
	return &History{st: st, log: log}
}

// Push 追加一条已生效的命令，使任何重做尾部失效。
func (h *History) Push(cmd Command) {
	h.stack = append(h.stack[:h.cursor], cmd)
	h.cursor = len(h.stack)
}

// Undo 撤销最近一条命令。栈空时为 no-op，返回 false。
func (h *History) Undo() bool {
	if h.cursor == 0 {
		return false
	}
	h.cursor--
	cmd := h.stack[h.cursor]
	if err := h.revert(cmd); err != nil {
		h.log.Error("undo failed", "kind", cmd.Kind, "error", err)
	}
	return true
}

// Redo 重做最近撤销的命令。无可重做命令时为 no-op，返回 false。
func (h *History) Redo() bool {
	if h.cursor >= len(h.stack) {
		return false
	}
	cmd := h.stack[h.cursor]
	h.cursor++
	if err := h.apply(cmd); err != nil {
		h.log.Error("redo failed", "kind", cmd.Kind, "error", err)
	}
	return true
}

// CanUndo 是否存在可撤销命令。
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo 是否存在可重做命令。
func (h *History) CanRedo() bool { return h.cursor < len(h.stack) }

// Len 返回栈内命令总数（含已撤销部分）。
func (h *History) Len() int { return len(h.stack) }

// apply 正向解释命令。
func (h *History) apply(cmd Command) error {
	switch cmd.Kind {
	case KindAddNode, KindPaste:
		return h.insert(cmd.Nodes, cmd.Edges)
	case KindRemoveNodes:
		ids := nodeIDs(cmd.Nodes)
		h.st.RemoveNodes(ids...)
		return nil
	case KindAddEdge:
		return h.connect(cmd.Edges)
	case KindRemoveEdges:
		h.st.RemoveEdges(edgeIDs(cmd.Edges)...)
		return nil
	case KindMoveNode:
		return h.st.MoveNode(cmd.NodeID, cmd.To)
	default:
		return fmt.Errorf("unknown command kind: %s", cmd.Kind)
	}
}

// revert 逆向解释命令。
func (h *History) revert(cmd Command) error {
	switch cmd.Kind {
	case KindAddNode, KindPaste:
		h.st.RemoveNodes(nodeIDs(cmd.Nodes)...)
		return nil
	case KindRemoveNodes:
		return h.insert(cmd.Nodes, cmd.Edges)
	case KindAddEdge:
		h.st.RemoveEdges(edgeIDs(cmd.Edges)...)
		return nil
	case KindRemoveEdges:
		return h.connect(cmd.Edges)
	case KindMoveNode:
		return h.st.MoveNode(cmd.NodeID, cmd.From)
	default:
		return fmt.Errorf("unknown command kind: %s", cmd.Kind)
	}
}

// insert 重建节点快照及其之间的边。
func (h *History) insert(nodes []model.Node, edges []model.Edge) error {
	for i := range nodes {
		if err := h.st.AddNode(&nodes[i]); err != nil {
			return err
		}
	}
	return h.connect(edges)
}

func (h *History) connect(edges []model.Edge) error {
	for _, e := range edges {
		if _, err := h.st.AddEdge(e.Source, e.SourceHandle, e.Target, e.TargetHandle); err != nil {
			return err
		}
	}
	return nil
}

func nodeIDs(nodes []model.Node) []string {
	ids := make([]string, len(nodes))
	for i := range nodes {
		ids[i] = nodes[i].ID
	}
	return ids
}

func edgeIDs(edges []model.Edge) []string {
	ids := make([]string, len(edges))
	for i := range edges {
		ids[i] = edges[i].ID
	}
	return ids
}
