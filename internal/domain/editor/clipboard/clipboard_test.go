package clipboard_test

import (
	"testing"

	"flowcanvas/internal/domain/editor/clipboard"
	"flowcanvas/internal/domain/editor/history"
	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/domain/editor/store"
)

func seedPair(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(nil)
	for _, id := range []string{"a", "b"} {
		err := st.AddNode(&model.Node{
			ID:       id,
			BlockID:  "sum",
			Position: model.Position{X: 100, Y: 100},
			OutputSchema: &model.Schema{
				Type:       "object",
				Properties: map[string]*model.Schema{"out": {Type: "number"}},
			},
			InputSchema: &model.Schema{
				Type:       "object",
				Properties: map[string]*model.Schema{"in": {Type: "number"}},
			},
		})
		if err != nil {
			t.Fatalf("add node %s failed: %v", id, err)
		}
	}
	if _, err := st.AddEdge("a", "out", "b", "in"); err != nil {
		t.Fatalf("add edge failed: %v", err)
	}
	return st
}

// TestCopyPasteConnectedPair 规格场景：复制两个相连节点并粘贴，
// 得到两个全新标识的节点、一条连接它们的新边，位置各偏移 20。
func TestCopyPasteConnectedPair(t *testing.T) {
	st := seedPair(t)
	h := history.New(st, nil)
	cb := clipboard.New(0, nil)

	cb.Copy(st, []string{"a", "b"})
	ids := cb.Paste(st, h)
	if len(ids) != 2 {
		t.Fatalf("expected 2 pasted nodes, got %d", len(ids))
	}

	nodes, edges := st.Len()
	if nodes != 4 || edges != 2 {
		t.Fatalf("expected 4 nodes / 2 edges after paste, got %d / %d", nodes, edges)
	}

	for _, id := range ids {
		if id == "a" || id == "b" {
			t.Fatalf("pasted node reused original id %s", id)
		}
		n, ok := st.Node(id)
		if !ok {
			t.Fatalf("pasted node %s missing from store", id)
		}
		if n.Position.X != 120 || n.Position.Y != 120 {
			t.Fatalf("expected offset position (120,120), got %+v", n.Position)
		}
		if n.BackendID != "" {
			t.Fatalf("pasted node must not inherit backend id, got %q", n.BackendID)
		}
		if len(n.Connections) != 1 {
			t.Fatalf("expected exactly one connection on pasted node, got %v", n.Connections)
		}
	}
	t.Log("✅ pasted subgraph carries fresh ids, offset positions, one remapped edge")
}

// TestPasteIsUndoable 粘贴记为单条命令，一次撤销整体移除。
func TestPasteIsUndoable(t *testing.T) {
	st := seedPair(t)
	h := history.New(st, nil)
	cb := clipboard.New(0, nil)

	cb.Copy(st, []string{"a", "b"})
	cb.Paste(st, h)

	if !h.Undo() {
		t.Fatal("undo should succeed")
	}
	nodes, edges := st.Len()
	if nodes != 2 || edges != 1 {
		t.Fatalf("expected original 2 nodes / 1 edge after undo, got %d / %d", nodes, edges)
	}
}

// TestCopyBoundaryEdgeKeepsOuterEndpoint 只复制一端时，粘贴的边把未复制端保持原节点。
func TestCopyBoundaryEdgeKeepsOuterEndpoint(t *testing.T) {
	st := seedPair(t)
	h := history.New(st, nil)
	cb := clipboard.New(0, nil)

	cb.Copy(st, []string{"b"})
	ids := cb.Paste(st, h)
	if len(ids) != 1 {
		t.Fatalf("expected 1 pasted node, got %d", len(ids))
	}

	e, ok := st.Edge(model.EdgeID("a", "out", ids[0], "in"))
	if !ok {
		t.Fatalf("expected boundary edge from original a to pasted node")
	}
	if e.Source != "a" {
		t.Fatalf("expected outer endpoint preserved, got %s", e.Source)
	}
}

// TestPasteSnapshotIndependent 粘贴后再编辑原节点不影响剪贴板快照。
func TestPasteSnapshotIndependent(t *testing.T) {
	st := seedPair(t)
	h := history.New(st, nil)
	cb := clipboard.New(0, nil)

	cb.Copy(st, []string{"a"})
	st.SetConfiguredValue("a", "in", 99)

	ids := cb.Paste(st, h)
	n, _ := st.Node(ids[0])
	if v, ok := n.ConfiguredValues["in"]; ok && v == 99 {
		t.Fatal("clipboard snapshot leaked post-copy edits")
	}
}

// TestEmptyClipboardPasteIsNoop 空剪贴板粘贴返回空且不推命令。
func TestEmptyClipboardPasteIsNoop(t *testing.T) {
	st := seedPair(t)
	h := history.New(st, nil)
	cb := clipboard.New(0, nil)

	if ids := cb.Paste(st, h); ids != nil {
		t.Fatalf("expected nil result on empty clipboard, got %v", ids)
	}
	if h.Len() != 0 {
		t.Fatalf("expected no command pushed, got %d", h.Len())
	}
}
