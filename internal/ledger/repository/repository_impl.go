package repository

import (
	"context"

	"github.com/trackpilot/revsync/internal/ledger/domain"
	"github.com/trackpilot/revsync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, gdb *gorm.DB, event *domain.LedgerEvent) (bool, error) {
	err := gdb.WithContext(ctx).Create(event).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repo) ListByTransaction(ctx context.Context, gdb *gorm.DB, projectID, provider, transactionID string) ([]*domain.LedgerEvent, error) {
	var events []*domain.LedgerEvent
	err := gdb.WithContext(ctx).
		Where("project_id = ? AND provider = ? AND transaction_id = ?", projectID, provider, transactionID).
		Order("created_at asc, id asc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) ListByOrder(ctx context.Context, gdb *gorm.DB, projectID, provider, orderID string) ([]*domain.LedgerEvent, error) {
	var events []*domain.LedgerEvent
	err := gdb.WithContext(ctx).
		Where("project_id = ? AND provider = ? AND order_id = ?", projectID, provider, orderID).
		Order("created_at asc, id asc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
