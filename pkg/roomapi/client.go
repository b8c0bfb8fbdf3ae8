// Package roomapi is the REST client of the room backend.
package roomapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"resty.dev/v3"

	"roomfeed/internal/core"
)

var (
	apiLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomapi_request_latency",
			Help:    "Histogram of room API request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "path", "status_code"},
	)
)

type Client struct {
	client *resty.Client
}

func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig
	}

	settings := config.TransportSettings
	if settings == nil {
		settings = DefaultConfig.TransportSettings
	}

	client := resty.NewWithTransportSettings(settings).
		SetBaseURL(strings.TrimSuffix(config.BaseURL, "/")).
		SetHeader("Accept", "application/json")

	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}

	client.AddResponseMiddleware(metricMiddleware)
	for _, m := range config.ResponseMiddlewares {
		client.AddResponseMiddleware(m)
	}
	for _, m := range config.RequestMiddlewares {
		client.AddRequestMiddleware(m)
	}

	return &Client{
		client: client,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx).SetError(&apiError{})
}

type apiError struct {
	Message string `json:"message"`
	Err     string `json:"error"`
}

// check classifies a finished request: transport failures and 5xx are transient, other 4xx are rejections.
func check(res *resty.Response, err error) error {
	if err != nil {
		return core.Transient(err)
	}

	status := res.StatusCode()
	switch {
	case status >= 500:
		return core.Transient(fmt.Errorf("%s %s: %s", res.Request.Method, res.Request.URL, res.Status()))
	case res.IsError():
		return &core.RejectionError{Status: status, Message: errorMessage(res)}
	default:
		return nil
	}
}

func errorMessage(res *resty.Response) string {
	if e, ok := res.Error().(*apiError); ok && e != nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != "" {
			return e.Err
		}
	}
	return strings.TrimSpace(res.String())
}

func metricMiddleware(_ *resty.Client, response *resty.Response) error {
	reqURL, err := url.Parse(response.Request.URL)
	if err != nil {
		return err
	}

	statusCode := response.StatusCode()
	apiLatency.WithLabelValues(
		response.Request.Method,
		reqURL.Path,
		fmt.Sprintf("%d", statusCode),
	).Observe(response.Duration().Seconds())

	return nil
}

func pathID(id int64) string {
	return fmt.Sprintf("%d", id)
}
