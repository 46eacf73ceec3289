package model

// Position 画布坐标。
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ExecutionStatus 节点执行状态（可视层）。
type ExecutionStatus string

const (
	StatusNone      ExecutionStatus = "none"
	StatusQueued    ExecutionStatus = "queued"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// ConnectionRef 边在节点连接列表上的反规范化投影。
// 与 Edge 集合保持严格 1:1：每条触及节点的边在该节点上恰好对应一条记录。
type ConnectionRef struct {
	EdgeID       string `json:"edge_id"`
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle"`
}

// Node 编辑器中的块实例。
// ID 为编辑器本地标识，会话内唯一且稳定；BackendID 首次保存成功后由后端分配，
// 一经设置不再指向其他后端实体。
type Node struct {
	ID               string            `json:"id"`
	BackendID        string            `json:"backend_id,omitempty"`
	BlockID          string            `json:"block_id"`
	Position         Position          `json:"position"`
	InputSchema      *Schema           `json:"input_schema,omitempty"`
	OutputSchema     *Schema           `json:"output_schema,omitempty"`
	ConfiguredValues map[string]any    `json:"configured_values,omitempty"`
	Connections      []ConnectionRef   `json:"connections,omitempty"`
	Status           ExecutionStatus   `json:"status,omitempty"`
	LastOutput       map[string][]any  `json:"last_output,omitempty"`
	OutputOpen       bool              `json:"output_open,omitempty"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
}

// Clone 返回节点的深拷贝，供历史快照和剪贴板使用。
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.ConfiguredValues = cloneValueMap(n.ConfiguredValues)
	c.Connections = append([]ConnectionRef(nil), n.Connections...)
	if n.LastOutput != nil {
		c.LastOutput = make(map[string][]any, len(n.LastOutput))
		for k, vs := range n.LastOutput {
			c.LastOutput[k] = append([]any(nil), vs...)
		}
	}
	if n.ValidationErrors != nil {
		c.ValidationErrors = make(map[string]string, len(n.ValidationErrors))
		for k, v := range n.ValidationErrors {
			c.ValidationErrors[k] = v
		}
	}
	return &c
}

// Edge 节点间的定向连接。
// ID 由 (source, sourceHandle, target, targetHandle) 确定性导出，
// 同一张图重新加载时边标识保持一致。
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle"`
	Color        string `json:"color,omitempty"`

	// BeadUp 已产出未被消费的值数量；BeadQueue 按产出顺序保存这些值（最新在前）；
	// BeadDown 已完成消费的单调计数。
	BeadUp    int   `json:"bead_up"`
	BeadDown  int   `json:"bead_down"`
	BeadQueue []any `json:"bead_queue,omitempty"`
}

// EdgeID 导出确定性的边标识。
func EdgeID(source, sourceHandle, target, targetHandle string) string {
	return source + "_" + sourceHandle + "_" + target + "_" + targetHandle
}

// Clone 返回边的深拷贝。
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	c.BeadQueue = append([]any(nil), e.BeadQueue...)
	return &c
}

// Ref 返回该边在节点连接列表上的投影。
func (e *Edge) Ref() ConnectionRef {
	return ConnectionRef{
		EdgeID:       e.ID,
		Source:       e.Source,
		SourceHandle: e.SourceHandle,
		Target:       e.Target,
		TargetHandle: e.TargetHandle,
	}
}

func cloneValueMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = cloneValueMap(sub)
			continue
		}
		if list, ok := v.([]any); ok {
			out[k] = append([]any(nil), list...)
			continue
		}
		out[k] = v
	}
	return out
}
