package maps

import (
	"time"

	"github.com/richxcame/truckroute/pkg/httpclient"
)

// ProviderConfig holds configuration for a maps provider
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func (c ProviderConfig) client(defaultBaseURL string) *httpclient.Client {
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return httpclient.NewClient(baseURL, timeout)
}
