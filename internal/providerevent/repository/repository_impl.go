package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trackpilot/revsync/internal/providerevent/domain"
	"github.com/trackpilot/revsync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, gdb *gorm.DB, event *domain.ProviderEvent) (bool, error) {
	err := gdb.WithContext(ctx).Create(event).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repo) UpdateStatus(ctx context.Context, gdb *gorm.DB, id snowflake.ID, status string) error {
	return gdb.WithContext(ctx).
		Model(&domain.ProviderEvent{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repo) ListPage(ctx context.Context, gdb *gorm.DB, projectID string, since time.Time, limit, offset int) ([]*domain.ProviderEvent, error) {
	var events []*domain.ProviderEvent
	err := gdb.WithContext(ctx).
		Where("project_id = ? AND received_at >= ?", projectID, since).
		Order("received_at asc, id asc").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
