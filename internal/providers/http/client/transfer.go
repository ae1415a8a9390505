package client

import (
	"context"
	"errors"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var errCancelled = errors.New("transfer cancelled")

const chunkSize = 32 * 1024

// Transfer downloads url into destination, blocking until the body is fully
// written, the transfer fails or Cancel is called. Pause and Cancel persist
// across calls until Reset, so they also hold for a retry of the same file.
func (c *Client) Transfer(ctx context.Context, url, destination string, bytesPerSec uint64) Result {
	c.transferMu.Lock()
	defer c.transferMu.Unlock()

	ctx, abort := context.WithCancel(ctx)
	defer abort()

	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		c.logger.Info("transfer skipped, cancel pending", zap.String("url", url))
		return HTTPError
	}
	c.progress = 0
	c.status = 0
	c.abort = abort
	c.setRateLimitLocked(bytesPerSec)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.abort = nil
		c.mu.Unlock()
	}()

	file, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		c.logger.Error("failed to open destination", zap.String("path", destination), zap.Error(err))
		return DiskError
	}

	result := c.fetch(ctx, url, file)
	if closeErr := file.Close(); closeErr != nil && result == Success {
		c.logger.Error("failed to close destination", zap.String("path", destination), zap.Error(closeErr))
		result = DiskError
	}
	if result != Success {
		if err := os.Remove(destination); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove partial file", zap.String("path", destination), zap.Error(err))
		}
	}
	return result
}

func (c *Client) fetch(ctx context.Context, url string, file io.Writer) Result {
	ticket, err := c.breaker.Allow()
	if err != nil {
		c.logger.Warn("transfer refused", zap.String("url", url), zap.Error(err))
		return HTTPError
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		ticket.Done(c.wasCancelled())
		c.logger.Error("transfer request failed", zap.String("url", url), zap.Error(err))
		return HTTPError
	}
	body := resp.RawBody()
	defer body.Close()

	// The server answered, so the transport is healthy whatever the status
	ticket.Done(true)

	status := resp.StatusCode()
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()

	if status >= 400 {
		c.logger.Warn("transfer rejected", zap.String("url", url), zap.Int("status", status))
		return HTTPError
	}

	reader := &progressReader{
		client: c,
		ctx:    ctx,
		body:   body,
		total:  resp.RawResponse.ContentLength,
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				c.logger.Error("failed to write destination", zap.String("url", url), zap.Error(err))
				return DiskError
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			c.logger.Warn("transfer interrupted", zap.String("url", url), zap.Error(readErr))
			return HTTPError
		}
	}

	c.mu.Lock()
	c.progress = 100
	c.mu.Unlock()
	return Success
}

func (c *Client) wasCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// progressReader applies pause, cancel and the byte rate to a response body
type progressReader struct {
	client *Client
	ctx    context.Context
	body   io.Reader
	total  int64
	read   int64
}

func (r *progressReader) Read(p []byte) (int, error) {
	c := r.client

	c.mu.Lock()
	for c.paused && !c.cancelled {
		c.resumed.Wait()
	}
	cancelled := c.cancelled
	limiter := c.limiter
	c.mu.Unlock()

	if cancelled {
		return 0, errCancelled
	}
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	if limiter.Limit() != rate.Inf {
		if burst := limiter.Burst(); burst > 0 && len(p) > burst {
			p = p[:burst]
		}
	}

	n, err := r.body.Read(p)
	if n > 0 {
		if waitErr := waitBytes(r.ctx, limiter, n); waitErr != nil {
			return n, waitErr
		}
		r.read += int64(n)
		if r.total > 0 {
			percent := r.read * 100 / r.total
			if percent > 100 {
				percent = 100
			}
			c.mu.Lock()
			c.progress = uint8(percent)
			c.mu.Unlock()
		}
	}
	return n, err
}

// waitBytes consumes n tokens, in burst-sized steps since the limit may
// change mid-transfer.
func waitBytes(ctx context.Context, limiter *rate.Limiter, n int) error {
	for n > 0 {
		if limiter.Limit() == rate.Inf {
			return nil
		}
		step := limiter.Burst()
		if step <= 0 {
			return nil
		}
		if step > n {
			step = n
		}
		if err := limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
