package pipeline

import (
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/config"
	"github.com/sells-group/segment-cli/internal/model"
)

// sanitizeNumbers clamps implausible numeric fields in place and returns the
// degradation flags earned. Clamped values are kept at the bound, never
// trusted as returned, and the result is stamped low-confidence.
func sanitizeNumbers(phase model.PhaseName, data map[string]any, cfg config.AnalysisConfig) []string {
	var flags []string
	flag := func() {
		if len(flags) == 0 {
			flags = append(flags, model.FlagDataImplausible)
		}
	}

	switch phase {
	case model.PhaseMarketLandscape:
		if v, ok := data["growth_rate_pct"]; ok {
			if growth, numeric := asFloat(v); numeric {
				clamped := clamp(growth, -cfg.MaxGrowthPct, cfg.MaxGrowthPct)
				if clamped != growth {
					zap.L().Warn("implausible growth rate clamped",
						zap.Float64("reported", growth),
						zap.Float64("clamped", clamped))
					flag()
				}
				data["growth_rate_pct"] = clamped
			} else {
				data["growth_rate_pct"] = 0.0
				flag()
			}
		}
		if v, ok := data["market_size_usd"]; ok {
			if size, numeric := asFloat(v); numeric {
				if size > 0 {
					clamped := clamp(size, cfg.MinMarketUSD, cfg.MaxMarketUSD)
					if clamped != size {
						zap.L().Warn("implausible market size clamped",
							zap.Float64("reported", size),
							zap.Float64("clamped", clamped))
						flag()
					}
					data["market_size_usd"] = clamped
				} else {
					data["market_size_usd"] = 0.0
				}
			} else {
				data["market_size_usd"] = 0.0
				flag()
			}
		}

	case model.PhaseSegments:
		segments, ok := data["segments"].([]any)
		if !ok {
			return flags
		}
		for _, item := range segments {
			seg, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := seg["size_pct"]; ok {
				if pct, numeric := asFloat(v); numeric {
					clamped := clamp(pct, 0, 100)
					if clamped != pct {
						flag()
					}
					seg["size_pct"] = clamped
				}
			}
		}
	}

	return flags
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
