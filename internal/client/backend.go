// Package client 实现编辑器访问图服务的 HTTP 客户端。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/platform/config"
)

// Config 客户端配置。
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Backend port.GraphAPI 的 HTTP 实现。
type Backend struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewFromConfig 从全局配置的 backend 段构建客户端。
func NewFromConfig(cfg config.BackendConfig) *Backend {
	return New(Config{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
}

// New 创建图服务客户端。
func New(cfg Config) *Backend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Backend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetGraph 读取图。
func (b *Backend) GetGraph(ctx context.Context, id string) (*model.Graph, error) {
	var g model.Graph
	if err := b.do(ctx, http.MethodGet, "/api/v1/graphs/"+id, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGraph 创建图，返回带后端标识的已保存图。
func (b *Backend) CreateGraph(ctx context.Context, g *model.Graph) (*model.Graph, error) {
	var saved model.Graph
	if err := b.do(ctx, http.MethodPost, "/api/v1/graphs", g, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// UpdateGraph 覆盖更新图。
func (b *Backend) UpdateGraph(ctx context.Context, id string, g *model.Graph) (*model.Graph, error) {
	var saved model.Graph
	if err := b.do(ctx, http.MethodPut, "/api/v1/graphs/"+id, g, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// GetBlocks 拉取块目录。
func (b *Backend) GetBlocks(ctx context.Context) ([]*model.Block, error) {
	var blocks []*model.Block
	if err := b.do(ctx, http.MethodGet, "/api/v1/blocks", nil, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// apiEnvelope 服务端统一响应包络。
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (b *Backend) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode payload: %w", method, path, err)
		}
	}
	return nil
}
