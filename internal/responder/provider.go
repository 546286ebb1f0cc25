package responder

import (
	"fmt"

	"github.com/mnemolabs/reprime/internal/domain"
)

// Provider constants
const (
	ProviderSimulated = "simulated"
	ProviderHTTP      = "http"
	ProviderMock      = "mock"
)

// NewResponder creates a response collaborator based on the provider name.
// Returns an error if the provider is unknown or the HTTP provider has no URL.
func NewResponder(provider, url string) (domain.Responder, error) {
	switch provider {
	case ProviderSimulated:
		return NewSimulatedResponder(0), nil

	case ProviderHTTP:
		if url == "" {
			return nil, fmt.Errorf("RESPONDER_URL is required for HTTP provider")
		}
		return NewHTTPResponder(url), nil

	case ProviderMock:
		return NewMockResponder(), nil

	default:
		return nil, fmt.Errorf("unknown responder provider: %s (valid options: simulated, http, mock)", provider)
	}
}
