package providers

import (
	"github.com/trackpilot/revsync/internal/config"
	"github.com/trackpilot/revsync/internal/providers/automation"
	"github.com/trackpilot/revsync/internal/providers/email"
	"go.uber.org/fx"
)

// Module wires the outbound collaborators. Unconfigured URLs degrade
// to no-ops so local development needs no external services.
var Module = fx.Module("providers",
	fx.Provide(provideEmail),
	fx.Provide(provideAutomation),
)

func provideEmail(cfg config.Config) email.Provider {
	if cfg.EmailServiceURL == "" {
		return &email.NoOpProvider{}
	}
	return email.NewHTTPProvider(cfg.EmailServiceURL)
}

func provideAutomation(cfg config.Config) automation.Provider {
	if cfg.AutomationServiceURL == "" {
		return &automation.NoOpProvider{}
	}
	return automation.NewHTTPProvider(cfg.AutomationServiceURL)
}
