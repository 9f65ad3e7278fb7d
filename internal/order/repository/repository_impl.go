package repository

import (
	"context"
	"time"

	"github.com/trackpilot/revsync/internal/order/domain"
	"github.com/trackpilot/revsync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, gdb *gorm.DB, order *domain.Order) error {
	return gdb.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByProviderOrderID(ctx context.Context, gdb *gorm.DB, projectID, provider, providerOrderID string) (*domain.Order, error) {
	var order domain.Order
	err := gdb.WithContext(ctx).
		Where("project_id = ? AND provider = ? AND provider_order_id = ?", projectID, provider, providerOrderID).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) AddContribution(ctx context.Context, gdb *gorm.DB, orderID int64, c domain.Contribution, status string) error {
	return gdb.WithContext(ctx).Exec(
		`UPDATE orders
		 SET customer_paid = customer_paid + ?,
		     gross_base = gross_base + ?,
		     producer_net = producer_net + ?,
		     status = ?,
		     updated_at = ?
		 WHERE id = ?`,
		c.CustomerPaid,
		c.GrossBase,
		c.ProducerNet,
		status,
		time.Now().UTC(),
		orderID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, gdb *gorm.DB, orderID int64, status string, approvedAt, completedAt *time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if approvedAt != nil {
		updates["approved_at"] = *approvedAt
	}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	return gdb.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repo) InsertItem(ctx context.Context, gdb *gorm.DB, item *domain.OrderItem) error {
	err := gdb.WithContext(ctx).Create(item).Error
	if db.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}

func (r *repo) FindItem(ctx context.Context, gdb *gorm.DB, orderID int64, providerProductID string) (*domain.OrderItem, error) {
	var item domain.OrderItem
	err := gdb.WithContext(ctx).
		Where("order_id = ? AND provider_product_id = ?", orderID, providerProductID).
		First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListItems(ctx context.Context, gdb *gorm.DB, orderID int64) ([]*domain.OrderItem, error) {
	var items []*domain.OrderItem
	err := gdb.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertOrderMap(ctx context.Context, gdb *gorm.DB, m *domain.ProviderOrderMap) error {
	err := gdb.WithContext(ctx).Create(m).Error
	if db.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}

func (r *repo) FindOrderMap(ctx context.Context, gdb *gorm.DB, projectID, provider, transactionID string) (*domain.ProviderOrderMap, error) {
	var m domain.ProviderOrderMap
	err := gdb.WithContext(ctx).
		Where("project_id = ? AND provider = ? AND provider_transaction_id = ?", projectID, provider, transactionID).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
