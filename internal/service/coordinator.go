package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/realtime"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
	pkgerrors "github.com/shiivaansh/sortED-sub000/pkg/errors"
)

// ErrPartiallyApplied 分多个批次提交的批量操作中途失败，此前的批次已生效
var ErrPartiallyApplied = errors.New("批量操作部分生效")

// Coordinator 批量写入协调器
//
// 单次 Submit 原子提交；提交成功后按文档发布变更事件。
// 事件发布失败只记录日志，不影响已提交的写入。
type Coordinator struct {
	batch  repository.BatchWriter
	bus    realtime.Bus
	logger *zap.Logger
}

// NewCoordinator 创建 Coordinator，bus 为 nil 时不发布事件
func NewCoordinator(batch repository.BatchWriter, bus realtime.Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{batch: batch, bus: bus, logger: logger}
}

// Submit 原子提交一组写入
func (c *Coordinator) Submit(ctx context.Context, muts []repository.Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	if err := c.batch.Commit(ctx, muts); err != nil {
		return err
	}
	c.publish(ctx, muts)
	return nil
}

// SubmitGroups 把多组写入装箱成不超过上限的批次依次提交
//
// 同一组内的写入总在同一批次中。某个批次失败时立即返回，
// 若此前已有批次生效，错误包装 ErrPartiallyApplied 并注明已生效的组数。
func (c *Coordinator) SubmitGroups(ctx context.Context, groups [][]repository.Mutation) (applied int, batches int, err error) {
	limit := c.batch.MaxSize()
	for i, g := range groups {
		if len(g) > limit {
			return 0, 0, fmt.Errorf("%w: 第 %d 组含 %d 个写入", pkgerrors.ErrBatchTooLarge, i+1, len(g))
		}
	}

	var (
		chunk      []repository.Mutation
		chunkCount int
	)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := c.Submit(ctx, chunk); err != nil {
			return err
		}
		batches++
		applied += chunkCount
		chunk, chunkCount = nil, 0
		return nil
	}

	for _, g := range groups {
		if len(chunk)+len(g) > limit {
			if err := flush(); err != nil {
				return applied, batches, c.partial(err, applied, len(groups))
			}
		}
		chunk = append(chunk, g...)
		chunkCount++
	}
	if err := flush(); err != nil {
		return applied, batches, c.partial(err, applied, len(groups))
	}
	return applied, batches, nil
}

func (c *Coordinator) partial(err error, applied, total int) error {
	if applied == 0 {
		return err
	}
	c.logger.Warn("批量操作部分生效",
		zap.Int("applied_groups", applied), zap.Int("total_groups", total), zap.Error(err))
	return fmt.Errorf("%w: 已生效 %d/%d 组: %w", ErrPartiallyApplied, applied, total, err)
}

func (c *Coordinator) publish(ctx context.Context, muts []repository.Mutation) {
	if c.bus == nil {
		return
	}
	for _, change := range changesFor(muts) {
		if err := c.bus.Publish(ctx, change); err != nil {
			c.logger.Warn("发布变更事件失败",
				zap.String("collection", change.Collection),
				zap.String("doc_id", change.DocID),
				zap.Error(err))
		}
	}
}

// changesFor 每个被写入的文档生成一条变更，按首次出现顺序
func changesFor(muts []repository.Mutation) []realtime.Change {
	seen := make(map[string]struct{}, len(muts))
	changes := make([]realtime.Change, 0, len(muts))
	now := nowFunc()
	for _, m := range muts {
		key := m.Ref.Path()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		parent := m.Ref.ParentID
		// 点名流水按班级聚合推送
		if entry, ok := m.Doc.(*model.AttendanceEntry); ok && entry.ClassID != nil {
			parent = *entry.ClassID
		}
		changes = append(changes, realtime.Change{
			Collection: m.Ref.Collection,
			DocID:      m.Ref.ID,
			ParentID:   parent,
			Path:       key,
			Op:         string(m.Op),
			At:         now,
		})
	}
	return changes
}
