package runtime

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/resilience"
)

const service = "runtime"

// reply is the envelope returned by every runtime manager endpoint
type reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Client talks to the runtime manager over HTTP/JSON with a circuit breaker
type Client struct {
	http    *resty.Client
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// New creates a runtime manager client rooted at baseURL
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

	breaker := resilience.New(service, resilience.Settings{
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{http: http, breaker: breaker, logger: logger}
}

// WithMetrics records call durations against m
func (c *Client) WithMetrics(m *monitoring.Metrics) *Client {
	c.metrics = m
	return c
}

// Run starts a container
func (c *Client) Run(ctx context.Context, req lifecycle.RunRequest) error {
	return c.call(ctx, "run", "/containers", req)
}

// Terminate asks a container to exit gracefully
func (c *Client) Terminate(ctx context.Context, appInstanceID string) error {
	return c.control(ctx, "terminate", appInstanceID)
}

// Kill stops a container immediately
func (c *Client) Kill(ctx context.Context, appInstanceID string) error {
	return c.control(ctx, "kill", appInstanceID)
}

// Hibernate checkpoints a container
func (c *Client) Hibernate(ctx context.Context, appInstanceID string) error {
	return c.control(ctx, "hibernate", appInstanceID)
}

// Wake restores a hibernated container
func (c *Client) Wake(ctx context.Context, appInstanceID string) error {
	return c.control(ctx, "wake", appInstanceID)
}

// Suspend freezes a container
func (c *Client) Suspend(ctx context.Context, appInstanceID string) error {
	return c.control(ctx, "suspend", appInstanceID)
}

// Resume thaws a suspended container
func (c *Client) Resume(ctx context.Context, appInstanceID string) error {
	return c.control(ctx, "resume", appInstanceID)
}

// BreakerState reports the collaborator circuit state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *Client) control(ctx context.Context, action, appInstanceID string) error {
	if appInstanceID == "" {
		return fmt.Errorf("runtime %s: empty app instance id", action)
	}
	return c.call(ctx, action, "/containers/"+url.PathEscape(appInstanceID)+"/"+action, nil)
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}) error {
	timer := monitoring.NewTimer(c.metrics, service, method)

	err := c.breaker.Execute(func() error {
		var out reply
		r := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out)
		if body != nil {
			r.SetBody(body)
		}

		resp, err := r.Post(path)
		if err != nil {
			return fmt.Errorf("runtime %s: %w", method, err)
		}
		if resp.IsError() {
			return fmt.Errorf("runtime %s: HTTP %d: %s", method, resp.StatusCode(), out.Error)
		}
		if !out.Success {
			return fmt.Errorf("runtime %s rejected: %s", method, out.Error)
		}
		return nil
	})

	timer.StopErr(err)
	if err != nil {
		c.logger.Warn("Runtime manager call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return err
}

func propagateTrace(_ *resty.Client, r *resty.Request) error {
	if traceID := tracing.FromContext(r.Context()); traceID != "" {
		r.SetHeader(tracing.Header, traceID.String())
	}
	return nil
}
