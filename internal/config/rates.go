package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// RatesConfig is the settlement-currency conversion table. Both the
// real-time webhook path and the backfill path read through the same
// holder, so the two always reconcile to identical ledger totals.
type RatesConfig struct {
	Settlement string             `mapstructure:"settlement"`
	Rates      map[string]float64 `mapstructure:"rates"`
}

// Rate returns the conversion rate for code relative to the settlement
// currency, and whether the table actually knows that code.
func (c RatesConfig) Rate(code string) (decimal.Decimal, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == strings.ToUpper(c.Settlement) {
		return decimal.NewFromInt(1), true
	}
	rate, ok := c.Rates[code]
	if !ok {
		return decimal.NewFromInt(1), false
	}
	return decimal.NewFromFloat(rate), true
}

func DefaultRatesConfig() RatesConfig {
	return RatesConfig{
		Settlement: "BRL",
		Rates: map[string]float64{
			"USD": 5.20,
			"EUR": 5.65,
			"GBP": 6.55,
			"MXN": 0.28,
			"COP": 0.0013,
			"ARS": 0.0055,
			"CLP": 0.0056,
			"PEN": 1.40,
		},
	}
}

// RatesHolder keeps the active rate table behind an atomic.Value so the
// file can be swapped at runtime without redeploying the pipeline.
type RatesHolder struct {
	current atomic.Value // holds RatesConfig
}

func NewRatesHolder() (*RatesHolder, error) {
	v := viper.New()

	v.SetConfigName("rates")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/revsync/config")
	v.AddConfigPath("/etc/revsync")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REVSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultRatesConfig()
		v.SetDefault("currency.settlement", defaults.Settlement)
		v.SetDefault("currency.rates", defaults.Rates)
	}

	var cfg RatesConfig
	if err := v.UnmarshalKey("currency", &cfg); err != nil {
		return nil, err
	}
	if err := validateRatesConfig(cfg); err != nil {
		return nil, err
	}

	holder := &RatesHolder{}
	holder.current.Store(normalizeRates(cfg))

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RatesConfig
		if err := v.UnmarshalKey("currency", &updated); err != nil {
			log.Printf("[rates-config] reload failed: %v", err)
			return
		}
		if err := validateRatesConfig(updated); err != nil {
			log.Printf("[rates-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(normalizeRates(updated))
		log.Printf("[rates-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticRatesHolder wraps a fixed table, used by tests and anywhere a
// file-backed holder is not wanted.
func NewStaticRatesHolder(cfg RatesConfig) *RatesHolder {
	holder := &RatesHolder{}
	holder.current.Store(normalizeRates(cfg))
	return holder
}

func (h *RatesHolder) Get() RatesConfig {
	return h.current.Load().(RatesConfig)
}

func validateRatesConfig(cfg RatesConfig) error {
	if strings.TrimSpace(cfg.Settlement) == "" {
		return errors.New("currency.settlement cannot be empty")
	}
	for code, rate := range cfg.Rates {
		if rate <= 0 {
			return errors.New("currency.rates." + code + " must be positive")
		}
	}
	return nil
}

func normalizeRates(cfg RatesConfig) RatesConfig {
	out := RatesConfig{
		Settlement: strings.ToUpper(strings.TrimSpace(cfg.Settlement)),
		Rates:      make(map[string]float64, len(cfg.Rates)),
	}
	for code, rate := range cfg.Rates {
		out.Rates[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	return out
}
