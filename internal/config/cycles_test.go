package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mnemolabs/reprime/internal/domain"
	"github.com/mnemolabs/reprime/internal/service"
)

func writeCycleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cycles.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write cycle file: %v", err)
	}
	return path
}

func TestLoadCycles_EmptyPathUsesDefaults(t *testing.T) {
	cycles, err := LoadCycles("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := service.DefaultCycles()
	if len(cycles) != len(want) {
		t.Fatalf("expected %d cycles, got %d", len(want), len(cycles))
	}
	if cycles[domain.TierDue].BatchCap != want[domain.TierDue].BatchCap {
		t.Fatalf("expected default batch cap")
	}
}

func TestLoadCycles_MissingFileUsesDefaults(t *testing.T) {
	cycles, err := LoadCycles(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cycles[domain.TierImminent].Interval != 4*time.Hour {
		t.Fatalf("expected default imminent interval")
	}
}

func TestLoadCycles_OverridesOneTier(t *testing.T) {
	path := writeCycleFile(t, `
[[cycles]]
tier = "due"
interval = "12h"
batch_cap = 50
priority_threshold = 0.5
strategies = ["multimodal-reconstruction"]
`)

	cycles, err := LoadCycles(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	due := cycles[domain.TierDue]
	if due.Interval != 12*time.Hour {
		t.Fatalf("expected 12h interval, got %s", due.Interval)
	}
	if due.BatchCap != 50 {
		t.Fatalf("expected batch cap 50, got %d", due.BatchCap)
	}
	if due.PriorityThreshold != 0.5 {
		t.Fatalf("expected threshold 0.5, got %.2f", due.PriorityThreshold)
	}
	if len(due.Strategies) != 1 || due.Strategies[0] != domain.StrategyMultimodalReconstruction {
		t.Fatalf("expected overridden strategy list, got %v", due.Strategies)
	}

	// Untouched tiers keep their defaults.
	if cycles[domain.TierCritical].Interval != 168*time.Hour {
		t.Fatalf("expected critical interval untouched")
	}
}

func TestLoadCycles_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown tier", "[[cycles]]\ntier = \"mystery\"\n"},
		{"bad interval", "[[cycles]]\ntier = \"due\"\ninterval = \"soon\"\n"},
		{"unknown strategy", "[[cycles]]\ntier = \"due\"\nstrategies = [\"hypnosis\"]\n"},
		{"not toml", "{\"tier\": \"due\"}"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeCycleFile(t, tc.content)
			if _, err := LoadCycles(path); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}
