package responder

import (
	"context"

	"github.com/mnemolabs/reprime/internal/domain"
)

// MockResponder is a configurable responder for testing.
// Queue scripted responses per call; once the script runs out the Default
// response repeats.
type MockResponder struct {
	Script  []domain.StageResponse
	Default domain.StageResponse
	Err     error

	// Call tracking for assertions
	Calls []domain.Stimulus
}

func NewMockResponder() *MockResponder {
	return &MockResponder{
		Default: domain.StageResponse{Recognition: 0.5, Confidence: 0.5},
	}
}

func (r *MockResponder) Respond(ctx context.Context, s domain.Stimulus) (domain.StageResponse, error) {
	r.Calls = append(r.Calls, s)
	if r.Err != nil {
		return domain.StageResponse{}, r.Err
	}
	if len(r.Script) > 0 {
		next := r.Script[0]
		r.Script = r.Script[1:]
		return next, nil
	}
	return r.Default, nil
}

// Reset clears recorded calls and the remaining script.
func (r *MockResponder) Reset() {
	r.Script = nil
	r.Err = nil
	r.Calls = nil
	r.Default = domain.StageResponse{Recognition: 0.5, Confidence: 0.5}
}

var _ domain.Responder = (*MockResponder)(nil)
