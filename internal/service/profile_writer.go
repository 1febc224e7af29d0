package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
	pkgerrors "github.com/shiivaansh/sortED-sub000/pkg/errors"
)

// profileWriter 档案冗余数组的读-改-写
//
// 默认不加锁：两个并发写入同一档案同一字段时，后提交者会覆盖先提交者（丢失更新）。
// optimistic 开启后，首个针对该档案的写入带版本条件，冲突时重新读取并重试。
type profileWriter struct {
	repo       *repository.Repository
	coord      *Coordinator
	optimistic bool
	maxRetries int
	logger     *zap.Logger
}

// Write 读取档案，由 build 按当前状态构造整批写入并提交
// 返回构造写入时读到的档案与尝试次数
func (w *profileWriter) Write(
	ctx context.Context,
	userID string,
	build func(u *model.User) ([]repository.Mutation, error),
) (*model.User, int, error) {
	attempts := 0
	for {
		attempts++

		user, err := w.repo.User.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, attempts, ErrProfileNotFound
			}
			return nil, attempts, err
		}

		muts, err := build(user)
		if err != nil {
			return nil, attempts, err
		}
		if w.optimistic {
			muts = guardVersion(muts, repository.UserRef(userID), user.Version)
		}

		err = w.coord.Submit(ctx, muts)
		if err == nil {
			return user, attempts, nil
		}
		if !w.optimistic || !errors.Is(err, pkgerrors.ErrOptimisticLock) || attempts > w.maxRetries {
			return nil, attempts, err
		}
		w.logger.Info("档案版本冲突，重新读取后重试",
			zap.String("user_id", userID), zap.Int("attempt", attempts))
	}
}

// guardVersion 给第一个指向 ref 的非 set 写入加版本条件
// 同批次后续写入会递增版本，只能校验第一次
func guardVersion(muts []repository.Mutation, ref repository.DocRef, version int) []repository.Mutation {
	out := make([]repository.Mutation, len(muts))
	copy(out, muts)
	for i, m := range out {
		if m.Ref == ref && m.Op != repository.OpSet {
			out[i] = m.WithVersion(version)
			break
		}
	}
	return out
}
