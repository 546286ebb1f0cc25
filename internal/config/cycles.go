package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mnemolabs/reprime/internal/domain"
	"github.com/mnemolabs/reprime/internal/service"
)

// cycleFile is the on-disk shape of the rescue cycle table.
//
//	[[cycles]]
//	tier = "due"
//	interval = "24h"
//	batch_cap = 35
//	priority_threshold = 0.6
//	strategies = ["fragment-intensive", "multimodal-reconstruction"]
type cycleFile struct {
	Cycles []cycleEntry `toml:"cycles"`
}

type cycleEntry struct {
	Tier              string   `toml:"tier"`
	Interval          string   `toml:"interval"`
	BatchCap          int      `toml:"batch_cap"`
	PriorityThreshold float64  `toml:"priority_threshold"`
	Strategies        []string `toml:"strategies"`
}

// LoadCycles reads a TOML cycle table. An empty path or a missing file yields
// the compiled-in defaults; a present but invalid file is an error so a typo
// never silently reverts the schedule.
func LoadCycles(path string) (map[domain.UrgencyTier]service.CycleConfig, error) {
	if path == "" {
		return service.DefaultCycles(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return service.DefaultCycles(), nil
	}

	var file cycleFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode cycle table %s: %w", path, err)
	}

	cycles := service.DefaultCycles()
	for _, entry := range file.Cycles {
		if !domain.ValidTier(entry.Tier) {
			return nil, fmt.Errorf("cycle table %s: unknown tier %q", path, entry.Tier)
		}
		tier := domain.UrgencyTier(entry.Tier)

		cfg := cycles[tier]
		if entry.Interval != "" {
			d, err := time.ParseDuration(entry.Interval)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("cycle table %s: bad interval for tier %q: %q", path, entry.Tier, entry.Interval)
			}
			cfg.Interval = d
		}
		if entry.BatchCap > 0 {
			cfg.BatchCap = entry.BatchCap
		}
		if entry.PriorityThreshold > 0 {
			cfg.PriorityThreshold = entry.PriorityThreshold
		}
		if len(entry.Strategies) > 0 {
			names := make([]domain.StrategyName, 0, len(entry.Strategies))
			for _, s := range entry.Strategies {
				if !domain.ValidStrategy(s) {
					return nil, fmt.Errorf("cycle table %s: unknown strategy %q", path, s)
				}
				names = append(names, domain.StrategyName(s))
			}
			cfg.Strategies = names
		}
		cycles[tier] = cfg
	}

	return cycles, nil
}
