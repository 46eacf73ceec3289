package history_test

import (
	"encoding/json"
	"sort"
	"testing"

	"flowcanvas/internal/domain/editor/history"
	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/domain/editor/store"
)

func sumNode(id string) *model.Node {
	return &model.Node{
		ID:      id,
		BlockID: "sum",
		OutputSchema: &model.Schema{
			Type:       "object",
			Properties: map[string]*model.Schema{"out": {Type: "number"}},
		},
		InputSchema: &model.Schema{
			Type:       "object",
			Properties: map[string]*model.Schema{"in": {Type: "number"}},
			Required:   []string{"in"},
		},
	}
}

// snapshot 序列化存储的规范形态（连接列表排序后），用于深度相等比较。
func snapshot(t *testing.T, st *store.Store) string {
	t.Helper()
	type view struct {
		Nodes []*model.Node `json:"nodes"`
		Edges []*model.Edge `json:"edges"`
	}
	nodes := st.Nodes()
	for _, n := range nodes {
		sort.Slice(n.Connections, func(i, j int) bool {
			return n.Connections[i].EdgeID < n.Connections[j].EdgeID
		})
	}
	raw, err := json.Marshal(view{Nodes: nodes, Edges: st.Edges()})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	return string(raw)
}

// TestUndoRedoRestoresDeepEqualState 任意单条结构命令撤销后状态与命令前深度相等，
// 重做后与命令后深度相等。
func TestUndoRedoRestoresDeepEqualState(t *testing.T) {
	st := store.New(nil)
	h := history.New(st, nil)

	a := sumNode("a")
	if err := st.AddNode(a); err != nil {
		t.Fatalf("add node failed: %v", err)
	}
	h.Push(history.Command{Kind: history.KindAddNode, Nodes: []model.Node{*a}})

	before := snapshot(t, st)

	b := sumNode("b")
	st.AddNode(b)
	h.Push(history.Command{Kind: history.KindAddNode, Nodes: []model.Node{*b}})
	after := snapshot(t, st)

	if !h.Undo() {
		t.Fatal("undo should succeed")
	}
	if got := snapshot(t, st); got != before {
		t.Fatalf("undo did not restore pre-command state:\n got %s\nwant %s", got, before)
	}

	if !h.Redo() {
		t.Fatal("redo should succeed")
	}
	if got := snapshot(t, st); got != after {
		t.Fatalf("redo did not restore post-command state:\n got %s\nwant %s", got, after)
	}
	t.Log("✅ undo/redo round-trip is deep-equal")
}

// TestDeleteNodeUndoRestoresEdge 规格场景：删除 A 级联删边，撤销恢复 A 和边。
func TestDeleteNodeUndoRestoresEdge(t *testing.T) {
	st := store.New(nil)
	h := history.New(st, nil)

	st.AddNode(sumNode("a"))
	st.AddNode(sumNode("b"))
	if _, err := st.AddEdge("a", "out", "b", "in"); err != nil {
		t.Fatalf("add edge failed: %v", err)
	}
	before := snapshot(t, st)

	nodes, edges := st.RemoveNodes("a")
	cmd := history.Command{Kind: history.KindRemoveNodes}
	for _, n := range nodes {
		cmd.Nodes = append(cmd.Nodes, *n)
	}
	for _, e := range edges {
		cmd.Edges = append(cmd.Edges, *e)
	}
	h.Push(cmd)

	bNode, _ := st.Node("b")
	if len(bNode.Connections) != 0 {
		t.Fatalf("expected b connections emptied, got %v", bNode.Connections)
	}

	if !h.Undo() {
		t.Fatal("undo should succeed")
	}
	if got := snapshot(t, st); got != before {
		t.Fatalf("undo did not restore node and edge:\n got %s\nwant %s", got, before)
	}
	t.Log("✅ node deletion round-trip restored the cascade-removed edge")
}

// TestPushTruncatesRedoTail 撤销后推入新命令使重做尾部失效。
func TestPushTruncatesRedoTail(t *testing.T) {
	st := store.New(nil)
	h := history.New(st, nil)

	st.AddNode(sumNode("a"))
	h.Push(history.Command{Kind: history.KindAddNode, Nodes: []model.Node{*sumNode("a")}})

	st.AddNode(sumNode("b"))
	h.Push(history.Command{Kind: history.KindAddNode, Nodes: []model.Node{*sumNode("b")}})

	h.Undo() // 移除 b
	if !h.CanRedo() {
		t.Fatal("expected redo available after undo")
	}

	st.AddNode(sumNode("c"))
	h.Push(history.Command{Kind: history.KindAddNode, Nodes: []model.Node{*sumNode("c")}})

	if h.CanRedo() {
		t.Fatal("expected redo tail truncated after new push")
	}
	if h.Len() != 2 {
		t.Fatalf("expected stack of 2 commands, got %d", h.Len())
	}
}

// TestUndoEmptyStackIsNoop 空栈撤销/重做是 no-op。
func TestUndoEmptyStackIsNoop(t *testing.T) {
	st := store.New(nil)
	h := history.New(st, nil)

	if h.Undo() {
		t.Fatal("undo on empty stack should return false")
	}
	if h.Redo() {
		t.Fatal("redo on empty stack should return false")
	}
}

// TestMoveCommandRoundTrip 移动命令的撤销/重做恢复对应位置。
func TestMoveCommandRoundTrip(t *testing.T) {
	st := store.New(nil)
	h := history.New(st, nil)

	st.AddNode(sumNode("a"))
	from := model.Position{X: 0, Y: 0}
	to := model.Position{X: 120, Y: 80}
	st.MoveNode("a", to)
	h.Push(history.Command{Kind: history.KindMoveNode, NodeID: "a", From: from, To: to})

	h.Undo()
	a, _ := st.Node("a")
	if a.Position != from {
		t.Fatalf("expected position restored to %+v, got %+v", from, a.Position)
	}

	h.Redo()
	a, _ = st.Node("a")
	if a.Position != to {
		t.Fatalf("expected position restored to %+v, got %+v", to, a.Position)
	}
}
