package uplink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// MetadataOptions configures a single GetRemoteMetadata call.
type MetadataOptions struct {
	ETag          string
	RemoteAddress string
	Method        string
	Retries       int
	Timeout       time.Duration
	Headers       http.Header
}

// GetRemoteMetadata performs a conditional JSON GET against
// <baseURL>/<encode(name)>, returning the decoded manifest and its ETag.
func (c *Client) GetRemoteMetadata(ctx context.Context, name string, opts MetadataOptions) (map[string]any, string, error) {
	if c.health.isOffline() {
		return nil, "", newError(c.upname, UplinkOffline)
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, encodePackageName(name))

	headers, err := buildHeaders(c.upname, c.cfg, c.main, headerOptions{
		overrides:     opts.Headers,
		remoteAddress: opts.RemoteAddress,
		explicitProxy: c.explicitProxy,
		forwardAuth:   true,
		etag:          opts.ETag,
	})
	if err != nil {
		return nil, "", err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	var body []byte
	var etag string

	operation := func() error {
		c.health.recordAttempt()

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, method, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header = headers.Clone()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.health.recordFailure()
			return err
		}
		defer resp.Body.Close()

		raw, readErr := readResponseBody(resp)
		if readErr != nil {
			c.health.recordFailure()
			return readErr
		}

		switch {
		case resp.StatusCode == http.StatusNotModified:
			// 304 means the upstream is reachable; it is not a health failure.
			c.health.recordSuccess()
			return backoff.Permanent(newError(c.upname, NotModifiedNoData))
		case resp.StatusCode == http.StatusNotFound:
			// The upstream answered authoritatively that the package doesn't
			// exist; that proves the link is up, so it doesn't count against
			// the breaker (mirrored in tarball.go's identical treatment).
			c.health.recordSuccess()
			return backoff.Permanent(newError(c.upname, NotFoundUplink))
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			c.health.recordSuccess()
			body = raw
			etag = resp.Header.Get("ETag")
			return nil
		default:
			// Any other status (typically 5xx) counts against the circuit
			// breaker the same as a transport error, and is retried. The
			// counter accumulates across separate top-level calls, not just
			// within this call's own retry loop.
			c.health.recordFailure()
			return statusError(c.upname, resp.StatusCode)
		}
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxInt(opts.Retries, 0)))
	if err := backoff.Retry(operation, policy); err != nil {
		if ue, ok := err.(*Error); ok {
			return nil, "", ue
		}
		c.logger.Debug("metadata fetch transport error",
			zap.String("upname", c.upname),
			zap.String("name", name),
			zap.Error(err))
		return nil, "", err
	}

	manifest := make(map[string]any)
	if len(body) > 0 {
		if err := jsonAPI.Unmarshal(body, &manifest); err != nil {
			return nil, "", fmt.Errorf("%s: decode manifest for %q: %w", c.upname, name, err)
		}
	}

	return manifest, etag, nil
}

// readResponseBody drains resp.Body, transparently gzip-decompressing when
// Content-Encoding: gzip is present. This is necessary because the header
// builder sets Accept-Encoding itself, which disables net/http's automatic
// transport-level decompression.
func readResponseBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
