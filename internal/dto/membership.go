package dto

import "time"

// ── 社团 / 活动模块 DTO ──

// MembershipResponse 加入 / 退出后的成员状态
type MembershipResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	IsMember bool   `json:"is_member"`
	Count    int    `json:"count"`
}

// CreateCommunityRequest 创建社团请求
type CreateCommunityRequest struct {
	Name     string `json:"name"     binding:"required,max=100"`
	Category string `json:"category" binding:"omitempty,max=50"`
}

// CommunityResponse 社团信息
type CommunityResponse struct {
	CommunityID string    `json:"community_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Members     []string  `json:"members"`
	MemberCount int       `json:"member_count"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateEventRequest 创建活动请求，max_participants 为 0 表示不限人数
type CreateEventRequest struct {
	Title           string    `json:"title"            binding:"required,max=200"`
	StartsAt        time.Time `json:"starts_at"        binding:"required"`
	MaxParticipants int       `json:"max_participants" binding:"gte=0"`
}

// EventResponse 活动信息
type EventResponse struct {
	EventID             string    `json:"event_id"`
	Title               string    `json:"title"`
	StartsAt            time.Time `json:"starts_at"`
	MaxParticipants     int       `json:"max_participants"`
	Registrations       []string  `json:"registrations"`
	CurrentParticipants int       `json:"current_participants"`
	CreatedBy           string    `json:"created_by"`
}

// IssueCertificateRequest 签发证书请求
type IssueCertificateRequest struct {
	UserID string `json:"user_id" binding:"required,max=128"`
	Type   string `json:"type"    binding:"omitempty,oneof=participation winner organizer"`
}

// CertificateResponse 证书信息
type CertificateResponse struct {
	CertificateID string    `json:"certificate_id"`
	EventID       string    `json:"event_id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Code          string    `json:"code"`
	IssuedAt      time.Time `json:"issued_at"`
}

// ReconcileResult 计数校准结果
type ReconcileResult struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
}
