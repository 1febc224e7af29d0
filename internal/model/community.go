package model

import (
	"time"

	"github.com/lib/pq"
)

// Community 社团：对应 communities
type Community struct {
	CommunityID string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"community_id"`
	Name        string         `gorm:"type:varchar(100);not null"                     json:"name"`
	Category    string         `gorm:"type:varchar(50)"                               json:"category,omitempty"`
	Members     pq.StringArray `gorm:"type:text[];not null;default:'{}'"              json:"members"`
	MemberCount int            `gorm:"not null;default:0"                             json:"member_count"`
	CreatedBy   string         `gorm:"type:varchar(128);not null"                     json:"created_by"`
	BaseModel
}

func (Community) TableName() string { return "communities" }

// communities 表列名
const (
	CommunityColMembers     = "members"
	CommunityColMemberCount = "member_count"
)

// HasMember 判断是否已是成员
func (c *Community) HasMember(userID string) bool {
	return containsID(c.Members, userID)
}

// Event 活动：对应 events
type Event struct {
	EventID             string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	Title               string         `gorm:"type:varchar(200);not null"                     json:"title"`
	StartsAt            time.Time      `gorm:"not null"                                       json:"starts_at"`
	MaxParticipants     int            `gorm:"not null;default:0"                             json:"max_participants"` // 0 表示不限
	Registrations       pq.StringArray `gorm:"type:text[];not null;default:'{}'"              json:"registrations"`
	CurrentParticipants int            `gorm:"not null;default:0"                             json:"current_participants"`
	CertificatesIssued  int            `gorm:"column:stat_certificates_issued;not null;default:0" json:"certificates_issued"`
	CreatedBy           string         `gorm:"type:varchar(128);not null"                     json:"created_by"`
	BaseModel
}

func (Event) TableName() string { return "events" }

// events 表列名
const (
	EventColRegistrations       = "registrations"
	EventColCurrentParticipants = "current_participants"
	EventColCertificatesIssued  = "stat_certificates_issued"
)

// IsRegistered 判断是否已报名
func (e *Event) IsRegistered(userID string) bool {
	return containsID(e.Registrations, userID)
}

// IsFull 判断是否已满员
func (e *Event) IsFull() bool {
	return e.MaxParticipants > 0 && e.CurrentParticipants >= e.MaxParticipants
}

// Certificate 证书：对应 certificates（签发后不可修改）
type Certificate struct {
	CertificateID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"certificate_id"`
	EventID       string    `gorm:"type:uuid;not null;uniqueIndex:uk_certificates_event_user" json:"event_id"`
	UserID        string    `gorm:"type:varchar(128);not null;uniqueIndex:uk_certificates_event_user" json:"user_id"`
	Type          string    `gorm:"type:varchar(30);not null;default:'participation'" json:"type"`
	Code          string    `gorm:"type:varchar(40);not null;uniqueIndex"          json:"code"`
	IssuedAt      time.Time `gorm:"not null"                                       json:"issued_at"`
}

func (Certificate) TableName() string { return "certificates" }

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
