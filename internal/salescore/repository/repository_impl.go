package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/trackpilot/revsync/internal/salescore/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindActive(ctx context.Context, gdb *gorm.DB, projectID, providerEventID string) (*domain.SalesCoreEvent, error) {
	var event domain.SalesCoreEvent
	err := gdb.WithContext(ctx).
		Where("project_id = ? AND provider_event_id = ? AND is_active = ?", projectID, providerEventID, true).
		Order("version desc").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repo) Insert(ctx context.Context, gdb *gorm.DB, event *domain.SalesCoreEvent) error {
	return gdb.WithContext(ctx).Create(event).Error
}

func (r *repo) Deactivate(ctx context.Context, gdb *gorm.DB, id snowflake.ID) error {
	return gdb.WithContext(ctx).
		Model(&domain.SalesCoreEvent{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *repo) ListByEconomicDay(ctx context.Context, gdb *gorm.DB, projectID, economicDay string) ([]*domain.SalesCoreEvent, error) {
	var events []*domain.SalesCoreEvent
	err := gdb.WithContext(ctx).
		Where("project_id = ? AND economic_day = ? AND is_active = ?", projectID, economicDay, true).
		Order("occurred_at asc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
