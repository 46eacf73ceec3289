package redisdb

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"flowcanvas/internal/domain/editor/model"
	applog "flowcanvas/internal/platform/log"
)

// channelPrefix 每次运行一个频道，事件按到达顺序投递。
const channelPrefix = "flowcanvas:run:"

// Feed Redis pub/sub 实现的实时执行事件流。
// 服务端发布执行结果批次，编辑器端订阅消费。
type Feed struct {
	client *goredis.Client
}

// NewFeed 创建执行事件流。
func NewFeed(client *goredis.Client) *Feed {
	return &Feed{client: client}
}

// Publish 发布一批执行结果到指定运行的频道。
func (f *Feed) Publish(ctx context.Context, runID string, batch []model.ExecutionResult) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode execution results: %w", err)
	}
	if err := f.client.Publish(ctx, channelPrefix+runID, payload).Err(); err != nil {
		return fmt.Errorf("publish execution results: %w", err)
	}
	return nil
}

// Subscribe 订阅指定运行的执行结果批次。
// 返回的取消函数关闭订阅并最终关闭通道；解码失败的消息记日志后丢弃。
func (f *Feed) Subscribe(ctx context.Context, runID string) (<-chan []model.ExecutionResult, func(), error) {
	sub := f.client.Subscribe(ctx, channelPrefix+runID)

	// 等待订阅确认，订阅失败立刻暴露给调用方
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe run %s: %w", runID, err)
	}

	out := make(chan []model.ExecutionResult)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var batch []model.ExecutionResult
			if err := json.Unmarshal([]byte(msg.Payload), &batch); err != nil {
				applog.Warn("[Feed] Malformed execution result batch dropped", "run_id", runID, "error", err)
				continue
			}
			out <- batch
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return out, cancel, nil
}
