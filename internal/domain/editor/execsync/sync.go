// Package execsync 将实时执行事件流同步到编辑器的可视状态。
// 事件按后端节点标识投递，映射到编辑器节点后只改写可视字段
// （状态、最近输出、连线令牌计数），不触碰图拓扑和命令历史。
package execsync

import (
	"log/slog"

	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/domain/editor/store"
)

// Synchronizer 执行遥测同步器。除每批次从存储重算的映射外不持有状态。
type Synchronizer struct {
	st  *store.Store
	log *slog.Logger
}

// New 创建同步器。
func New(st *store.Store, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{st: st, log: log}
}

// Apply 应用一批执行结果。遥测是尽力而为的：找不到对应节点的事件
// 记日志后丢弃，绝不向调用方抛错、绝不打断编辑。
func (s *Synchronizer) Apply(batch []model.ExecutionResult) {
	if len(batch) == 0 {
		return
	}

	// 图可能在后端运行之后被编辑过，映射每批次重算
	byBackend := make(map[string]*model.Node)
	for _, n := range s.st.Nodes() {
		if n.BackendID != "" {
			byBackend[n.BackendID] = n
		}
	}

	for _, res := range batch {
		node, ok := byBackend[res.NodeID]
		if !ok {
			s.log.Debug("execution result for unmapped backend node, dropped", "backend_id", res.NodeID)
			continue
		}

		switch res.Status {
		case model.StatusCompleted:
			s.produceBeads(node, res.OutputData)
		case model.StatusRunning:
			s.consumeBeads(node, res.InputData)
		}

		// 状态未变时跳过可视写入，避免冗余重绘；令牌记账已在上面完成
		if node.Status == res.Status {
			continue
		}
		open := node.OutputOpen || len(res.OutputData) > 0
		if err := s.st.SetNodeVisual(node.ID, res.Status, res.OutputData, open); err != nil {
			s.log.Debug("visual update dropped", "node", node.ID, "error", err)
		}
	}
}

// produceBeads 节点完成：每个产出值在所有以 (节点, 输出名) 为源的边上登记一个在途令牌。
func (s *Synchronizer) produceBeads(node *model.Node, outputs map[string][]any) {
	for name, values := range outputs {
		edges := s.st.EdgesFrom(node.ID, name)
		if len(edges) == 0 {
			continue
		}
		for _, v := range values {
			for _, e := range edges {
				s.st.PushBead(e.ID, v)
			}
		}
	}
}

// consumeBeads 节点开始运行：每个消费值尝试与以 (节点, 输入名) 为汇的边上
// 最旧的在途令牌配对。不相等时静默跳过——多条边可以共享同名手柄，
// 这次消费未必对应本边的令牌。
func (s *Synchronizer) consumeBeads(node *model.Node, inputs map[string]any) {
	for name, v := range inputs {
		for _, e := range s.st.EdgesTo(node.ID, name) {
			s.st.PopBead(e.ID, v)
		}
	}
}
