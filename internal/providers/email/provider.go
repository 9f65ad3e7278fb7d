package email

import "context"

// PurchaseNotice is the payload sent to the email service after an
// approved purchase.
type PurchaseNotice struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	PlanName    string `json:"plan_name,omitempty"`
	Transaction string `json:"transaction"`
}

type Provider interface {
	SendPurchaseNotice(ctx context.Context, notice PurchaseNotice) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) SendPurchaseNotice(ctx context.Context, notice PurchaseNotice) error {
	return nil
}
