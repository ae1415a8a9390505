package client

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Result is the outcome of one transfer
type Result int

const (
	Success Result = iota
	HTTPError
	DiskError
)

// String returns the string representation of the result
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case HTTPError:
		return "http_error"
	case DiskError:
		return "disk_error"
	default:
		return "unknown"
	}
}

// Options configures a Client
type Options struct {
	Logger    *zap.Logger
	UserAgent string
	// Timeout bounds a whole transfer. Zero leaves transfers unbounded.
	Timeout time.Duration
	// TripAfter is the number of consecutive transport failures that open
	// the breaker. Defaults to 10.
	TripAfter uint32
	// Cooldown is how long the breaker stays open. Defaults to 30s.
	Cooldown time.Duration
}

// Client performs file transfers one at a time
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	logger  *zap.Logger

	// transferMu serializes Transfer; mu guards the fields below and is
	// never held across network I/O.
	transferMu sync.Mutex

	mu        sync.Mutex
	resumed   *sync.Cond
	limiter   *rate.Limiter
	progress  uint8
	status    int
	paused    bool
	cancelled bool
	abort     context.CancelFunc
}

// New creates a transfer client. Retries are left to the caller, so the
// retryable transport is used with retries disabled.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "AgentOS-AppManager/1.0"
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = 10
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetHeader("User-Agent", opts.UserAgent)
	if opts.Timeout > 0 {
		restyClient.SetTimeout(opts.Timeout)
	}

	logger := opts.Logger
	tripAfter := opts.TripAfter
	breaker := resilience.New("download-transfer", resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     opts.Cooldown,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("transfer breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	c := &Client{
		resty:   restyClient,
		breaker: breaker,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	c.resumed = sync.NewCond(&c.mu)
	return c
}

// Progress returns the percent of the current or last transfer
func (c *Client) Progress() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// StatusCode returns the HTTP status observed by the current or last transfer
func (c *Client) StatusCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetRateLimit changes the byte rate of the current and future transfers.
// Zero removes the limit.
func (c *Client) SetRateLimit(bytesPerSec uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setRateLimitLocked(bytesPerSec)
}

func (c *Client) setRateLimitLocked(bytesPerSec uint64) {
	if bytesPerSec == 0 {
		c.limiter.SetLimit(rate.Inf)
		return
	}
	c.limiter.SetLimit(rate.Limit(bytesPerSec))
	c.limiter.SetBurst(int(bytesPerSec))
}

// Reset clears pause and cancel before the client is used for another file
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.cancelled = false
	c.resumed.Broadcast()
}

// Cancel aborts the in-flight transfer and any later one until Reset
func (c *Client) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	if c.abort != nil {
		c.abort()
	}
	c.resumed.Broadcast()
}

// Pause blocks the in-flight transfer between reads. A transfer started
// while paused blocks before its first read.
func (c *Client) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume releases a paused transfer
func (c *Client) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.resumed.Broadcast()
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}
