package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/config"
	"github.com/shiivaansh/sortED-sub000/internal/dto"
)

// RosterResyncer 花名册全量同步
type RosterResyncer interface {
	ResyncAll(ctx context.Context) (int, error)
}

// CounterReconciler 社团 / 活动计数校准
type CounterReconciler interface {
	ReconcileCounters(ctx context.Context) (*dto.ReconcileResult, error)
}

// jobTimeout 单次任务的最长执行时间
const jobTimeout = 4 * time.Minute

// Scheduler 定时任务调度
//
// 同一任务上一次未结束时跳过本次触发。
type Scheduler struct {
	cron       *cron.Cron
	roster     RosterResyncer
	reconciler CounterReconciler
	logger     *zap.Logger
}

// NewScheduler 按配置注册任务，cron 表达式非法时返回错误
func NewScheduler(cfg *config.JobsConfig, roster RosterResyncer, reconciler CounterReconciler, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		roster:     roster,
		reconciler: reconciler,
		logger:     logger,
	}

	if cfg.RosterResyncCron != "" {
		if _, err := s.cron.AddFunc(cfg.RosterResyncCron, s.RunRosterResync); err != nil {
			return nil, fmt.Errorf("注册花名册同步任务失败: %w", err)
		}
	}
	if cfg.CounterReconcileCron != "" {
		if _, err := s.cron.AddFunc(cfg.CounterReconcileCron, s.RunCounterReconcile); err != nil {
			return nil, fmt.Errorf("注册计数校准任务失败: %w", err)
		}
	}

	logger.Info("定时任务已注册",
		zap.String("roster_resync", cfg.RosterResyncCron),
		zap.String("counter_reconcile", cfg.CounterReconcileCron))
	return s, nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() { s.cron.Start() }

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

// Entries 已注册任务数
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// RunRosterResync 执行一次花名册全量同步
func (s *Scheduler) RunRosterResync() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	enrolled, err := s.roster.ResyncAll(ctx)
	if err != nil {
		s.logger.Warn("花名册同步部分失败", zap.Int("enrolled", enrolled), zap.Error(err))
		return
	}
	s.logger.Info("花名册同步完成", zap.Int("enrolled", enrolled), zap.Duration("elapsed", time.Since(start)))
}

// RunCounterReconcile 执行一次计数校准
func (s *Scheduler) RunCounterReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	res, err := s.reconciler.ReconcileCounters(ctx)
	if err != nil {
		s.logger.Error("计数校准失败", zap.Error(err))
		return
	}
	s.logger.Info("计数校准完成", zap.Int("checked", res.Checked), zap.Int("repaired", res.Repaired))
}
