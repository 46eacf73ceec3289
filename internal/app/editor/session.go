// Package editor 组装编辑器核心为单一所有者的会话。
// 用户手势、保存响应、执行遥测三路变更全部经过会话的互斥锁串行化，
// 图模型存储因此不存在并发写者。
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"flowcanvas/internal/domain/editor/clipboard"
	"flowcanvas/internal/domain/editor/execsync"
	"flowcanvas/internal/domain/editor/history"
	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/domain/editor/persist"
	"flowcanvas/internal/domain/editor/port"
	"flowcanvas/internal/domain/editor/store"
	"flowcanvas/internal/domain/editor/validate"
	"flowcanvas/internal/platform/config"
)

// DefaultMinMoveBeforeLog 拖拽记入命令历史的最小位移，低于该值的微小移动不入栈。
const DefaultMinMoveBeforeLog = 50.0

// Config 会话参数。
type Config struct {
	MinMoveBeforeLog float64
	PasteOffset      float64
	Name             string
	Description      string
}

// ConfigFromApp 从全局配置的 editor 段提取会话参数。
func ConfigFromApp(cfg config.EditorConfig) Config {
	return Config{
		MinMoveBeforeLog: cfg.MinMoveBeforeLog,
		PasteOffset:      cfg.PasteOffset,
	}
}

// Session 一次图编辑会话。对渲染层暴露手势入口，对后端暴露保存与订阅。
type Session struct {
	mu sync.Mutex

	st        *store.Store
	hist      *history.History
	validator *validate.Validator
	clip      *clipboard.Clipboard
	sync      *execsync.Synchronizer
	rec       *persist.Reconciler

	api    port.GraphAPI
	feed   port.ExecutionFeed
	blocks map[string]*model.Block

	name        string
	description string
	minMove     float64
	dragStart   map[string]model.Position

	modalOpen   bool
	saving      bool
	unsubscribe func()
	feedGen     int // 订阅代次，退订即失效，在途批次据此丢弃

	log *slog.Logger
}

// NewSession 创建会话。
func NewSession(api port.GraphAPI, feed port.ExecutionFeed, cfg Config, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MinMoveBeforeLog <= 0 {
		cfg.MinMoveBeforeLog = DefaultMinMoveBeforeLog
	}
	st := store.New(log)
	return &Session{
		st:          st,
		hist:        history.New(st, log),
		validator:   validate.New(log),
		clip:        clipboard.New(cfg.PasteOffset, log),
		sync:        execsync.New(st, log),
		rec:         persist.New(api, log),
		api:         api,
		feed:        feed,
		blocks:      make(map[string]*model.Block),
		name:        cfg.Name,
		description: cfg.Description,
		minMove:     cfg.MinMoveBeforeLog,
		dragStart:   make(map[string]model.Position),
		log:         log,
	}
}

// Store 返回底层存储（渲染层读取节点/边集合用，变更仍须走会话入口）。
func (s *Session) Store() *store.Store { return s.st }

// Node 在会话锁下读取节点快照。遥测订阅期间渲染层应经此读取，
// 直接读存储会与事件流应用竞争。
func (s *Session) Node(id string) (*model.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.st.Node(id)
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// LoadBlocks 拉取块目录，加载图与创建节点都依赖它解析模式。
func (s *Session) LoadBlocks(ctx context.Context) error {
	list, err := s.api.GetBlocks(ctx)
	if err != nil {
		return fmt.Errorf("load blocks: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range list {
		s.blocks[b.ID] = b
	}
	return nil
}

// AddBlockNode 在指定位置放置一个块实例，记为一条添加命令。
func (s *Session) AddBlockNode(blockID string, pos model.Position) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blocks[blockID]
	if !ok {
		return nil, fmt.Errorf("add node: unknown block %q", blockID)
	}
	n := &model.Node{
		ID:           uuid.New().String(),
		BlockID:      blockID,
		Position:     pos,
		InputSchema:  b.InputSchema,
		OutputSchema: b.OutputSchema,
	}
	if err := s.st.AddNode(n); err != nil {
		return nil, err
	}
	s.hist.Push(history.Command{Kind: history.KindAddNode, Nodes: []model.Node{*n}})
	added, _ := s.st.Node(n.ID)
	return added, nil
}

// RemoveNodes 删除节点（级联删边），记为一条删除命令。
func (s *Session) RemoveNodes(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, edges := s.st.RemoveNodes(ids...)
	if len(nodes) == 0 {
		return
	}
	cmd := history.Command{Kind: history.KindRemoveNodes}
	for _, n := range nodes {
		cmd.Nodes = append(cmd.Nodes, *n)
	}
	for _, e := range edges {
		cmd.Edges = append(cmd.Edges, *e)
		// 级联删边可能让幸存节点的必填字段失去喂值边
		s.revalidate(e.Target)
	}
	s.hist.Push(cmd)
}

// Connect 连接两个手柄，记为一条加边命令。畸形连接（端点缺失）被拒绝。
func (s *Session) Connect(source, sourceHandle, target, targetHandle string) (*model.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.st.AddEdge(source, sourceHandle, target, targetHandle)
	if err != nil {
		return nil, err
	}
	s.hist.Push(history.Command{Kind: history.KindAddEdge, Edges: []model.Edge{*e}})
	s.revalidate(target)
	return e, nil
}

// Disconnect 删除边，记为一条删边命令。
func (s *Session) Disconnect(edgeIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.st.RemoveEdges(edgeIDs...)
	if len(removed) == 0 {
		return
	}
	cmd := history.Command{Kind: history.KindRemoveEdges}
	for _, e := range removed {
		cmd.Edges = append(cmd.Edges, *e)
		s.revalidate(e.Target)
	}
	s.hist.Push(cmd)
}

// BeginNodeDrag 拖拽开始，记录起点位置。
func (s *Session) BeginNodeDrag(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.st.Node(id); ok {
		s.dragStart[id] = n.Position
	}
}

// MoveNode 拖拽过程中的位置更新（渲染层高频调用，不入历史）。
func (s *Session) MoveNode(id string, pos model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.MoveNode(id, pos); err != nil {
		s.log.Debug("move dropped", "node", id, "error", err)
	}
}

// EndNodeDrag 拖拽结束。位移达到阈值才记一条移动命令，避免微小移动刷爆历史。
func (s *Session) EndNodeDrag(id string, to model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, tracked := s.dragStart[id]
	delete(s.dragStart, id)
	if err := s.st.MoveNode(id, to); err != nil {
		return
	}
	if !tracked {
		return
	}
	if math.Hypot(to.X-from.X, to.Y-from.Y) < s.minMove {
		return
	}
	s.hist.Push(history.Command{Kind: history.KindMoveNode, NodeID: id, From: from, To: to})
}

// UpdateNodeInput 更新节点的单个配置值并重新校验。
// 模式驱动的字段编辑不经结构变更接口，因此不可撤销（已知的不对称）。
func (s *Session) UpdateNodeInput(id, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.st.SetConfiguredValue(id, key, value); err != nil {
		return err
	}
	s.revalidate(id)
	return nil
}

// Undo 撤销最近一条命令。命令可能改动任意节点的接线，校验状态整体刷新。
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hist.Undo() {
		return false
	}
	s.revalidateAllLocked()
	return true
}

// Redo 重做最近撤销的命令。
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hist.Redo() {
		return false
	}
	s.revalidateAllLocked()
	return true
}

// CopySelection 复制选中的节点及触及它们的边。
func (s *Session) CopySelection(nodeIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clip.Copy(s.st, nodeIDs)
}

// Paste 粘贴剪贴板内容。模态对话框打开时禁用，避免节点插到对话框后面。
func (s *Session) Paste() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modalOpen {
		return nil
	}
	return s.clip.Paste(s.st, s.hist)
}

// SetModalOpen 标记模态对话框开关状态。
func (s *Session) SetModalOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalOpen = open
}

// ValidateAll 校验全部节点并把结果写回节点。返回整图是否可运行。
func (s *Session) ValidateAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid := true
	for _, n := range s.st.Nodes() {
		res := s.validator.Validate(n)
		_ = s.st.SetValidationErrors(n.ID, res.Errors)
		if !res.Valid {
			valid = false
		}
	}
	return valid
}

func (s *Session) revalidateAllLocked() {
	for _, n := range s.st.Nodes() {
		res := s.validator.Validate(n)
		_ = s.st.SetValidationErrors(n.ID, res.Errors)
	}
}

func (s *Session) revalidate(nodeID string) {
	n, ok := s.st.Node(nodeID)
	if !ok {
		return
	}
	res := s.validator.Validate(n)
	_ = s.st.SetValidationErrors(nodeID, res.Errors)
}

// Save 序列化并保存当前图，回填后端分配的节点标识。
// 上一次保存未返回时拒绝发起新保存（调用方应禁用保存动作）。
func (s *Session) Save(ctx context.Context) (*model.Graph, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return nil, fmt.Errorf("save already in flight")
	}
	s.saving = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	saved, wrote, err := s.rec.Save(ctx, s.st, s.name, s.description)
	if err != nil {
		return nil, err
	}
	if wrote {
		s.log.Info("graph saved", "graph_id", s.rec.GraphID())
	}
	return saved, nil
}

// GraphID 返回当前后端图标识（首次保存前为空）。
func (s *Session) GraphID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.GraphID()
}

// LoadGraph 加载一张已保存的图。先退订旧的执行流，再重建存储：
// 每个节点取全新的编辑器本地标识，线上标识挂为后端标识，
// 模式从块目录解析。
func (s *Session) LoadGraph(ctx context.Context, graphID string) error {
	g, err := s.api.GetGraph(ctx, graphID)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", graphID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 旧订阅必须先退掉，防止过期事件流写入新图
	s.stopFeedLocked()

	st := store.New(s.log)
	localIDs := make(map[string]string, len(g.Nodes))
	for _, wn := range g.Nodes {
		b, ok := s.blocks[wn.BlockID]
		if !ok {
			s.log.Warn("graph references unknown block, node skipped", "block", wn.BlockID)
			continue
		}
		n := &model.Node{
			ID:               uuid.New().String(),
			BackendID:        wn.ID,
			BlockID:          wn.BlockID,
			Position:         wn.Metadata.Position,
			InputSchema:      b.InputSchema,
			OutputSchema:     b.OutputSchema,
			ConfiguredValues: wn.InputDefault,
		}
		if err := st.AddNode(n); err != nil {
			return err
		}
		localIDs[wn.ID] = n.ID
	}
	for _, l := range g.Links {
		src, okS := localIDs[l.SourceID]
		dst, okT := localIDs[l.SinkID]
		if !okS || !okT {
			s.log.Warn("link references missing node, skipped", "source", l.SourceID, "sink", l.SinkID)
			continue
		}
		if _, err := st.AddEdge(src, l.SourceName, dst, l.SinkName); err != nil {
			s.log.Warn("link rebuild failed", "error", err)
		}
	}

	s.st = st
	s.hist = history.New(st, s.log)
	s.sync = execsync.New(st, s.log)
	s.rec = persist.New(s.api, s.log)
	s.rec.Bind(g.ID, nil)
	s.name = g.Name
	s.description = g.Description
	s.dragStart = make(map[string]model.Position)
	return nil
}

// StartRun 开始观察一次图运行：重置可视状态并订阅该运行的执行事件流。
// 已有订阅会先退订。
func (s *Session) StartRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.feed == nil {
		return fmt.Errorf("no execution feed configured")
	}
	s.stopFeedLocked()
	s.st.ResetExecutionState()

	ch, cancel, err := s.feed.Subscribe(ctx, runID)
	if err != nil {
		return fmt.Errorf("subscribe run %s: %w", runID, err)
	}
	s.unsubscribe = cancel

	// 退订只保证不再有新消息，已在传输缓冲里的批次仍会从通道送达。
	// 代次不匹配的批次整批丢弃，绝不落到退订后（可能已重建）的存储上。
	gen := s.feedGen
	go func() {
		for batch := range ch {
			s.mu.Lock()
			if gen == s.feedGen {
				s.sync.Apply(batch)
			}
			s.mu.Unlock()
		}
	}()
	return nil
}

// StopRun 退订当前执行事件流。
func (s *Session) StopRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopFeedLocked()
}

// Close 结束会话：退订执行流。必须在丢弃会话前调用。
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopFeedLocked()
}

func (s *Session) stopFeedLocked() {
	s.feedGen++
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}
