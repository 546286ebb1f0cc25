package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mnemolabs/reprime/internal/domain"
)

// HTTPResponder delivers stimuli to an external interaction surface over a
// JSON POST callback and maps its reply onto a stage response. The surface
// owns presentation; this client only speaks the wire contract.
type HTTPResponder struct {
	url        string
	httpClient *http.Client
}

func NewHTTPResponder(url string) *HTTPResponder {
	return &HTTPResponder{
		url:        url,
		httpClient: &http.Client{},
	}
}

// wire types for the callback contract
type stimulusRequest struct {
	ItemID   string   `json:"item_id"`
	Stage    string   `json:"stage"`
	Strategy string   `json:"strategy"`
	Cues     []wireCue `json:"cues,omitempty"`
	Fragment string   `json:"fragment,omitempty"`
}

type wireCue struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type stimulusResponse struct {
	Recognition    float64 `json:"recognition"`
	Confidence     float64 `json:"confidence"`
	ResponseTimeMS int64   `json:"response_time_ms"`
	Interference   bool    `json:"interference"`
	Error          string  `json:"error,omitempty"`
}

func (r *HTTPResponder) Respond(ctx context.Context, s domain.Stimulus) (domain.StageResponse, error) {
	cues := make([]wireCue, 0, len(s.Cues))
	for _, c := range s.Cues {
		cues = append(cues, wireCue{Type: string(c.Type), Content: c.Content})
	}

	body, err := json.Marshal(stimulusRequest{
		ItemID:   s.ItemID.String(),
		Stage:    string(s.Stage),
		Strategy: string(s.Strategy),
		Cues:     cues,
		Fragment: s.Fragment,
	})
	if err != nil {
		return domain.StageResponse{}, fmt.Errorf("marshal stimulus: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return domain.StageResponse{}, fmt.Errorf("create stimulus request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.StageResponse{}, fmt.Errorf("stimulus request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.StageResponse{}, fmt.Errorf("read stimulus response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.StageResponse{}, fmt.Errorf("responder returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result stimulusResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.StageResponse{}, fmt.Errorf("unmarshal stimulus response: %w", err)
	}
	if result.Error != "" {
		return domain.StageResponse{}, fmt.Errorf("responder error: %s", result.Error)
	}

	return domain.StageResponse{
		Recognition:  result.Recognition,
		Confidence:   result.Confidence,
		ResponseTime: time.Duration(result.ResponseTimeMS) * time.Millisecond,
		Interference: result.Interference,
	}, nil
}

var _ domain.Responder = (*HTTPResponder)(nil)
