// Package port 定义编辑器核心对外部协作方的依赖边界。
package port

import (
	"context"

	"flowcanvas/internal/domain/editor/model"
)

// GraphAPI 图服务接口：图的读写与块目录。
type GraphAPI interface {
	GetGraph(ctx context.Context, id string) (*model.Graph, error)
	CreateGraph(ctx context.Context, g *model.Graph) (*model.Graph, error)
	UpdateGraph(ctx context.Context, id string, g *model.Graph) (*model.Graph, error)
	GetBlocks(ctx context.Context) ([]*model.Block, error)
}

// ExecutionFeed 实时执行事件订阅接口。
// Subscribe 按运行标识订阅，返回按到达顺序投递的结果批次通道和取消函数；
// 取消后通道关闭，不再投递。
type ExecutionFeed interface {
	Subscribe(ctx context.Context, runID string) (<-chan []model.ExecutionResult, func(), error)
}
