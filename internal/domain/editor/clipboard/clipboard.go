// Package clipboard 复制/粘贴选中的子图。
// 复制按值快照，粘贴分配全新标识、偏移位置，并通过存储的变更接口插入，
// 保证连接列表与普通编辑走同一套一致性维护。
package clipboard

import (
	"log/slog"

	"github.com/google/uuid"

	"flowcanvas/internal/domain/editor/history"
	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/domain/editor/store"
)

// DefaultPasteOffset 粘贴节点相对原位置的固定偏移。
const DefaultPasteOffset = 20.0

// Clipboard 子图剪贴板。持有的是值快照，与存储中的实体不共享内存。
type Clipboard struct {
	nodes  []model.Node
	edges  []model.Edge
	offset float64
	log    *slog.Logger
}

// New 创建剪贴板。offset <= 0 时使用默认偏移。
func New(offset float64, log *slog.Logger) *Clipboard {
	if offset <= 0 {
		offset = DefaultPasteOffset
	}
	if log == nil {
		log = slog.Default()
	}
	return &Clipboard{offset: offset, log: log}
}

// Copy 快照选中的节点以及触及它们的边。重复调用覆盖上一次内容。
func (c *Clipboard) Copy(st *store.Store, nodeIDs []string) {
	c.nodes = c.nodes[:0]
	c.edges = c.edges[:0]

	selected := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		n, ok := st.Node(id)
		if !ok {
			continue
		}
		selected[id] = true
		c.nodes = append(c.nodes, *n.Clone())
	}
	for _, e := range st.Edges() {
		if selected[e.Source] || selected[e.Target] {
			c.edges = append(c.edges, *e.Clone())
		}
	}
}

// Empty 剪贴板是否为空。
func (c *Clipboard) Empty() bool { return len(c.nodes) == 0 }

// Paste 粘贴快照：每个节点取全新标识和偏移位置，边的端点经
// 旧标识->新标识映射重接（端点未被复制的边保持该端点不变），
// 整体记为一条粘贴命令。返回新节点标识。
func (c *Clipboard) Paste(st *store.Store, hist *history.History) []string {
	if len(c.nodes) == 0 {
		return nil
	}

	idMap := make(map[string]string, len(c.nodes))
	inserted := make([]model.Node, 0, len(c.nodes))
	for _, snap := range c.nodes {
		n := *snap.Clone()
		idMap[snap.ID] = uuid.New().String()
		n.ID = idMap[snap.ID]
		n.BackendID = "" // 新节点是全新的后端实体
		n.Position.X += c.offset
		n.Position.Y += c.offset
		n.Status = model.StatusNone
		n.LastOutput = nil
		n.OutputOpen = false
		n.Connections = nil
		if err := st.AddNode(&n); err != nil {
			c.log.Error("paste node failed", "node", n.ID, "error", err)
			continue
		}
		inserted = append(inserted, n)
	}

	var insertedEdges []model.Edge
	for _, snap := range c.edges {
		src := remap(idMap, snap.Source)
		dst := remap(idMap, snap.Target)
		e, err := st.AddEdge(src, snap.SourceHandle, dst, snap.TargetHandle)
		if err != nil {
			c.log.Debug("paste edge skipped", "source", src, "target", dst, "error", err)
			continue
		}
		insertedEdges = append(insertedEdges, *e)
	}

	if hist != nil && len(inserted) > 0 {
		hist.Push(history.Command{
			Kind:  history.KindPaste,
			Nodes: inserted,
			Edges: insertedEdges,
		})
	}

	ids := make([]string, len(inserted))
	for i := range inserted {
		ids[i] = inserted[i].ID
	}
	return ids
}

func remap(idMap map[string]string, id string) string {
	if fresh, ok := idMap[id]; ok {
		return fresh
	}
	return id
}
