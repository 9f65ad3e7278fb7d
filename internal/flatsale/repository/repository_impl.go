package repository

import (
	"context"
	"errors"
	"time"

	"github.com/trackpilot/revsync/internal/flatsale/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var overwriteColumns = []string{
	"provider", "event", "status",
	"buyer_email", "buyer_name", "buyer_phone",
	"product_id", "product_name", "offer_code", "offer_name", "plan_name",
	"customer_paid", "gross_base", "producer_net", "currency",
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "sck_raw",
	"occurred_at", "raw_payload", "updated_at",
}

func (r *repo) Upsert(ctx context.Context, gdb *gorm.DB, record *domain.FlatSaleRecord) error {
	record.UpdatedAt = time.Now().UTC()
	return gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "project_id"},
				{Name: "transaction_id"},
			},
			DoUpdates: clause.AssignmentColumns(overwriteColumns),
		}).
		Create(record).Error
}

func (r *repo) FindByTransaction(ctx context.Context, gdb *gorm.DB, projectID, transactionID string) (*domain.FlatSaleRecord, error) {
	var record domain.FlatSaleRecord
	err := gdb.WithContext(ctx).
		Where("project_id = ? AND transaction_id = ?", projectID, transactionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
