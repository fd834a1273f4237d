package client

import (
	"github.com/famomatic/vodfetch/internal/httpx"
)

func defaultFetcher(config Config) (httpx.Fetcher, error) {
	hc, err := httpx.New(httpx.Options{
		UserAgent: config.UserAgent,
		Proxy:     config.ProxyURL,
		Timeout:   config.HTTPTimeout,
	})
	if err != nil {
		return nil, err
	}
	return hc, nil
}
