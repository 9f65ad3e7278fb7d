package currency

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trackpilot/revsync/internal/config"
	"github.com/trackpilot/revsync/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Conversion is the audit record of a single normalization. The rate
// actually used is always captured so backfilled totals can be compared
// against what the webhook path wrote.
type Conversion struct {
	Amount   decimal.Decimal // amount in the settlement currency
	Currency string          // settlement currency code

	OriginalAmount   decimal.Decimal
	OriginalCurrency string

	Rate      decimal.Decimal
	Converted bool
	KnownRate bool
}

type Params struct {
	fx.In

	Rates   *config.RatesHolder
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

// Normalizer converts provider-native amounts into the settlement
// currency. The webhook path and the backfill path share one instance,
// so both read the same rate table.
type Normalizer struct {
	rates   *config.RatesHolder
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(p Params) *Normalizer {
	return &Normalizer{
		rates:   p.Rates,
		log:     p.Log.Named("currency.normalizer"),
		metrics: p.Metrics,
	}
}

// NewStatic builds a normalizer over a fixed table, for tests and tools.
func NewStatic(cfg config.RatesConfig, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{
		rates: config.NewStaticRatesHolder(cfg),
		log:   log,
	}
}

// Normalize converts amount from code into the settlement currency.
// Identity conversion when already in settlement currency. Unknown codes
// fall back to rate=1; that fallback is deliberate but loud (warn log
// plus counter) because it can misstate revenue for new currencies.
func (n *Normalizer) Normalize(amount decimal.Decimal, code string) Conversion {
	table := n.rates.Get()
	settlement := strings.ToUpper(strings.TrimSpace(table.Settlement))
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = settlement
	}

	if code == settlement {
		return Conversion{
			Amount:           amount,
			Currency:         settlement,
			OriginalAmount:   amount,
			OriginalCurrency: code,
			Rate:             decimal.NewFromInt(1),
			Converted:        false,
			KnownRate:        true,
		}
	}

	rate, known := table.Rate(code)
	if !known {
		n.log.Warn("unknown currency code, defaulting to rate=1",
			zap.String("currency", code),
		)
		if n.metrics != nil {
			n.metrics.UnknownCurrency.WithLabelValues(code).Inc()
		}
	}

	return Conversion{
		Amount:           amount.Mul(rate),
		Currency:         settlement,
		OriginalAmount:   amount,
		OriginalCurrency: code,
		Rate:             rate,
		Converted:        true,
		KnownRate:        known,
	}
}

// Settlement returns the configured settlement currency code.
func (n *Normalizer) Settlement() string {
	return strings.ToUpper(strings.TrimSpace(n.rates.Get().Settlement))
}
