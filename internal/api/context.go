package api

import (
	"context"
	"fmt"
)

// Scope 请求主体信息，由鉴权中间件注入。
type Scope struct {
	Subject string
}

type scopeKey struct{}

// WithScope 注入 Scope 到 context。
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom 从 context 取出 Scope。
func ScopeFrom(ctx context.Context) (*Scope, error) {
	scope, ok := ctx.Value(scopeKey{}).(*Scope)
	if !ok || scope == nil {
		return nil, fmt.Errorf("scope not found in context")
	}
	return scope, nil
}
