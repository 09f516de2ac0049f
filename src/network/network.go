package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"chart-observer/src/logger"
	"chart-observer/src/models"
)

const defaultUserAgent = "chart-observer/1.0"

type AsyncNetworkManager struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) (*AsyncNetworkManager, error) {
	if log == nil {
		log = logger.NewLogger(cfg, "Network")
	}
	nm := &AsyncNetworkManager{
		Config: cfg,
		Logger: log,
	}
	client, err := nm.createClient()
	if err != nil {
		return nil, err
	}
	nm.Client = client
	return nm, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyStr := nm.Config.Backend.Proxy; proxyStr != "" {
		proxyURL, err := url.Parse(proxyStr)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", proxyStr, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		nm.Logger.Info("Routing backend requests through proxy %s", proxyURL.Host)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.Backend.RequestTimeout) * time.Second,
	}, nil
}

// -----------------------------------------------------------------------------

// Get performs exactly one GET request. Retrying is the caller's decision.
// Non-2xx responses are not errors here: the status code is returned with the body.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, int, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, 0, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl.String(), nil)
	if err != nil {
		return nil, 0, err
	}

	userAgent := nm.Config.Backend.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := nm.Client.Do(req)
	if err != nil {
		nm.Logger.Info("Request to %s failed: %v", reqUrl.Path, err)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	nm.Logger.Debug("GET %s -> %d (%d bytes, %v)", reqUrl.Path, resp.StatusCode, len(body), time.Since(start))
	return body, resp.StatusCode, nil
}
