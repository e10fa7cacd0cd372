package httpclient

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/scan-io-git/logicscan/pkg/shared/config"
)

func TestApplyHTTPClientConfig(t *testing.T) {
	verify := false
	cfg := &config.Config{
		HTTPClient: config.HTTPClient{
			RetryCount:      3,
			Timeout:         5 * time.Second,
			TLSClientConfig: config.TLSClientConfig{Verify: &verify},
			Proxy:           config.Proxy{Host: "http://proxy", Port: 3128},
		},
	}

	got := applyHTTPClientConfig(cfg)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, 5*time.Second, got.Timeout)
	assert.Equal(t, config.DefaultHTTPConfig().RetryWaitTime, got.RetryWaitTime)
	assert.True(t, got.TLSClientConfig.InsecureSkipVerify)
	assert.Equal(t, "http://proxy:3128", got.Proxy)
}

func TestApplyHTTPClientConfigDefaults(t *testing.T) {
	got := applyHTTPClientConfig(nil)
	assert.Equal(t, config.DefaultRestyConfig().Timeout, got.Timeout)
	assert.False(t, got.TLSClientConfig.InsecureSkipVerify)

	client := InitializeRestyClient(hclog.NewNullLogger(), &config.Config{})
	assert.Equal(t, config.DefaultRestyConfig().RetryCount, client.RetryCount)
}
