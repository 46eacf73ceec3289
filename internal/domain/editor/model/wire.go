package model

// Graph 持久化线上格式。每次保存提交完整的节点/边集合，不做局部覆盖。
type Graph struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Nodes       []GraphNode `json:"nodes"`
	Links       []Link      `json:"links"`
	IsTemplate  bool        `json:"is_template,omitempty"`
}

// GraphNode 线上格式的节点记录。ID 在首次保存前为编辑器本地标识，
// 保存后由后端替换为其分配的标识。
type GraphNode struct {
	ID           string            `json:"id,omitempty"`
	BlockID      string            `json:"block_id"`
	InputDefault map[string]any    `json:"input_default,omitempty"`
	InputNodes   map[string]string `json:"input_nodes,omitempty"`
	OutputNodes  map[string]string `json:"output_nodes,omitempty"`
	Metadata     NodeMetadata      `json:"metadata"`
}

// NodeMetadata 节点的持久化元数据。
type NodeMetadata struct {
	Position Position `json:"position"`
}

// Link 边的线上格式。
type Link struct {
	SourceID   string `json:"source_id"`
	SinkID     string `json:"sink_id"`
	SourceName string `json:"source_name"`
	SinkName   string `json:"sink_name"`
}

// Block 块目录条目：一类计算单元的定义与输入/输出模式。
type Block struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	InputSchema  *Schema `json:"input_schema,omitempty"`
	OutputSchema *Schema `json:"output_schema,omitempty"`
}

// ExecutionResult 执行遥测事件，按后端节点标识投递，编辑器侧需自行映射。
type ExecutionResult struct {
	NodeID     string           `json:"node_id"`
	Status     ExecutionStatus  `json:"status"`
	InputData  map[string]any   `json:"input_data,omitempty"`
	OutputData map[string][]any `json:"output_data,omitempty"`
}
