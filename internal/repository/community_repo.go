package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/shiivaansh/sortED-sub000/internal/model"
)

// CommunityRepository 社团读取接口
type CommunityRepository interface {
	GetByID(ctx context.Context, id string) (*model.Community, error)
	List(ctx context.Context) ([]model.Community, error)
}

// EventRepository 活动读取接口
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
}

// CertificateRepository 证书读取接口
type CertificateRepository interface {
	GetByEventAndUser(ctx context.Context, eventID, userID string) (*model.Certificate, error)
	ListByUser(ctx context.Context, userID string) ([]model.Certificate, error)
}

type communityRepo struct {
	db *gorm.DB
}

func NewCommunityRepo(db *gorm.DB) CommunityRepository {
	return &communityRepo{db: db}
}

func (r *communityRepo) GetByID(ctx context.Context, id string) (*model.Community, error) {
	var c model.Community
	err := r.db.WithContext(ctx).
		Where("community_id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *communityRepo) List(ctx context.Context) ([]model.Community, error) {
	var list []model.Community
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

type eventRepo struct {
	db *gorm.DB
}

func NewEventRepo(db *gorm.DB) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := r.db.WithContext(ctx).
		Where("event_id = ?", id).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepo) List(ctx context.Context) ([]model.Event, error) {
	var list []model.Event
	err := r.db.WithContext(ctx).
		Order("starts_at ASC").
		Find(&list).Error
	return list, err
}

type certificateRepo struct {
	db *gorm.DB
}

func NewCertificateRepo(db *gorm.DB) CertificateRepository {
	return &certificateRepo{db: db}
}

func (r *certificateRepo) GetByEventAndUser(ctx context.Context, eventID, userID string) (*model.Certificate, error) {
	var c model.Certificate
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *certificateRepo) ListByUser(ctx context.Context, userID string) ([]model.Certificate, error) {
	var list []model.Certificate
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&list).Error
	return list, err
}
