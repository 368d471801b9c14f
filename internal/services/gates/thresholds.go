package gates

import (
	"strings"

	"FinScan/pkg/config"
)

// Thresholds holds every constant the gates compare against.
type Thresholds struct {
	PriceMax         float64
	FloatMax         float64
	EnforceFloatGate bool
	VolumeSharesGate int64
	FallbackVolGate  float64
	FallbackAllowPct float64
	TriggerPct       float64
	RealKeywords     []string
	SpecKeywords     []string
	MaxHeadlines     int
}

// DefaultThresholds returns the stock gate settings.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PriceMax:         30.0,
		FloatMax:         150_000_000,
		EnforceFloatGate: false,
		VolumeSharesGate: 2_000_000,
		FallbackVolGate:  300_000,
		FallbackAllowPct: 0.003,
		TriggerPct:       0.02,
		RealKeywords: []string{
			"earnings", "guidance", "m&a", "acquisition", "merger", "takeover",
			"13d", "13g", "insider", "buyback", "repurchase", "contract", "partnership", "deal",
		},
		SpecKeywords: []string{"strategic review", "pipeline", "explore options"},
		MaxHeadlines: 15,
	}
}

// ThresholdsFromConfig maps the gates section of the config.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	return Thresholds{
		PriceMax:         cfg.Gates.PriceMax,
		FloatMax:         cfg.Gates.FloatMax,
		EnforceFloatGate: cfg.Gates.EnforceFloatGate,
		VolumeSharesGate: cfg.Gates.VolumeSharesGate,
		FallbackVolGate:  cfg.Gates.FallbackVolGate,
		FallbackAllowPct: cfg.Gates.FallbackAllowPct,
		TriggerPct:       cfg.Gates.TriggerPct,
		RealKeywords:     lowerAll(cfg.Gates.RealCatalystKeywords),
		SpecKeywords:     lowerAll(cfg.Gates.SpeculativeKeywords),
		MaxHeadlines:     cfg.News.MaxHeadlines,
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
