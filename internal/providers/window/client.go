package window

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/tracing"
)

const service = "window"

type createDisplayRequest struct {
	Client      string `json:"client"`
	DisplayName string `json:"displayName"`
}

type reply struct {
	Success bool   `json:"success"`
	Ready   bool   `json:"ready"`
	Error   string `json:"error,omitempty"`
}

// Client talks to the window manager over HTTP/JSON
type Client struct {
	http    *resty.Client
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// New creates a window manager client rooted at baseURL
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	http.JSONMarshal = sonic.Marshal
	http.JSONUnmarshal = sonic.Unmarshal
	http.OnBeforeRequest(propagateTrace)

	return &Client{http: http, logger: logger}
}

// WithMetrics records call durations against m
func (c *Client) WithMetrics(m *monitoring.Metrics) *Client {
	c.metrics = m
	return c
}

// CreateDisplay asks the window manager for a display owned by client
func (c *Client) CreateDisplay(ctx context.Context, client, displayName string) error {
	if client == "" {
		return fmt.Errorf("window createDisplay: empty client")
	}

	timer := monitoring.NewTimer(c.metrics, service, "createDisplay")
	var out reply
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createDisplayRequest{Client: client, DisplayName: displayName}).
		SetResult(&out).
		SetError(&out).
		Post("/displays")
	err = check("createDisplay", resp, err, out)
	timer.StopErr(err)
	if err != nil {
		c.logger.Warn("Window manager call failed", zap.String("client", client), zap.Error(err))
	}
	return err
}

// RenderReady reports whether the client's display has rendered its first frame
func (c *Client) RenderReady(ctx context.Context, client string) (bool, error) {
	timer := monitoring.NewTimer(c.metrics, service, "renderReady")
	var out reply
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get("/displays/" + url.PathEscape(client) + "/render-ready")
	err = check("renderReady", resp, err, out)
	timer.StopErr(err)
	if err != nil {
		return false, err
	}
	return out.Ready, nil
}

func check(method string, resp *resty.Response, err error, out reply) error {
	if err != nil {
		return fmt.Errorf("window %s: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("window %s: HTTP %d: %s", method, resp.StatusCode(), out.Error)
	}
	if !out.Success {
		return fmt.Errorf("window %s rejected: %s", method, out.Error)
	}
	return nil
}

func propagateTrace(_ *resty.Client, r *resty.Request) error {
	if traceID := tracing.FromContext(r.Context()); traceID != "" {
		r.SetHeader(tracing.Header, traceID.String())
	}
	return nil
}
