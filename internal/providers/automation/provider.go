package automation

import "context"

// TransactionTrigger is the snapshot sent to the automation service so
// downstream flows can react to a processed transaction.
type TransactionTrigger struct {
	ProjectID   string `json:"project_id"`
	ContactID   string `json:"contact_id"`
	Transaction string `json:"transaction"`
	Event       string `json:"event"`
	Status      string `json:"status"`
}

type Provider interface {
	Trigger(ctx context.Context, trigger TransactionTrigger) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Trigger(ctx context.Context, trigger TransactionTrigger) error {
	return nil
}
