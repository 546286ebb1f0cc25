package responder

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/mnemolabs/reprime/internal/domain"
)

// SimulatedResponder models a plausible human reaction to a priming stimulus.
// Recognition grows with how much of the memory the stimulus reveals and with
// the activation probability of the presented fragment; noise keeps runs from
// being deterministic unless a fixed seed is supplied.
type SimulatedResponder struct {
	mu    sync.Mutex
	rng   *rand.Rand
	scale float64
}

// NewSimulatedResponder builds a simulated responder. A zero seed picks a
// time-based one.
func NewSimulatedResponder(seed int64) *SimulatedResponder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedResponder{rng: rand.New(rand.NewSource(seed)), scale: 1}
}

// SetLatencyScale compresses or stretches simulated think time. Values below
// one make the responder answer faster than the modeled human would.
func (r *SimulatedResponder) SetLatencyScale(s float64) {
	if s > 0 {
		r.scale = s
	}
}

func (r *SimulatedResponder) Respond(ctx context.Context, s domain.Stimulus) (domain.StageResponse, error) {
	r.mu.Lock()
	noise := r.rng.Float64()*0.2 - 0.1
	interference := r.rng.Float64() < 0.05
	jitter := r.rng.Float64()
	scale := r.scale
	r.mu.Unlock()

	params := stageParams(s.Stage)

	recognition := 0.15 + 0.45*params.reveal + noise
	if s.Fragment != "" {
		// Longer excerpts carry more signal, with diminishing returns.
		frag := float64(len(s.Fragment)) / 80
		if frag > 1 {
			frag = 1
		}
		recognition += 0.2 * frag
	}
	recognition += 0.03 * float64(min(len(s.Cues), 5))
	recognition = clamp01(recognition)

	// Stronger recognition answers faster.
	responseTime := time.Duration((1.2 - 0.7*recognition) * jitterScale(jitter) * scale * float64(params.baseLatency))

	select {
	case <-ctx.Done():
		return domain.StageResponse{}, ctx.Err()
	case <-time.After(responseTime):
	}

	return domain.StageResponse{
		Recognition:  recognition,
		Confidence:   clamp01(recognition + noise/2),
		ResponseTime: responseTime,
		Interference: interference,
	}, nil
}

type simParams struct {
	reveal      float64
	baseLatency time.Duration
}

func stageParams(stage domain.StageName) simParams {
	switch stage {
	case domain.StageMinimalCue:
		return simParams{reveal: 0.1, baseLatency: 2 * time.Second}
	case domain.StagePartialFragment:
		return simParams{reveal: 0.3, baseLatency: 3 * time.Second}
	case domain.StageContextualHint:
		return simParams{reveal: 0.5, baseLatency: 4 * time.Second}
	case domain.StageDirectPrompt:
		return simParams{reveal: 1.0, baseLatency: 5 * time.Second}
	default:
		return simParams{reveal: 0.3, baseLatency: 3 * time.Second}
	}
}

func jitterScale(u float64) float64 {
	return 0.7 + 0.6*u
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ domain.Responder = (*SimulatedResponder)(nil)
