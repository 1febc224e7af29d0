package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrBatchTooLarge 单个批次的写入数量超过存储层上限
var ErrBatchTooLarge = errors.New("批量写入数量超过上限")

// ErrDocumentNotFound 批次内更新的目标文档不存在
var ErrDocumentNotFound = errors.New("目标文档不存在")
