package uplink

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// SearchOptions configures a single Search call.
type SearchOptions struct {
	Headers http.Header
}

// SearchStream yields the elements of a search response's top-level
// "objects" array as they are parsed. The "date" and "total" fields are
// dropped.
type SearchStream struct {
	out    chan map[string]any
	errc   chan error
	cancel context.CancelFunc
}

// Next blocks for the next result object. ok is false once the stream is
// exhausted or aborted; callers should then check Err.
func (s *SearchStream) Next() (obj map[string]any, ok bool) {
	obj, ok = <-s.out
	return obj, ok
}

// Err returns the terminal error, if any, after Next has returned ok=false.
// It does not block.
func (s *SearchStream) Err() error {
	select {
	case err := <-s.errc:
		return err
	default:
		return nil
	}
}

// Close aborts an in-flight search, cancelling the request and releasing
// its connection.
func (s *SearchStream) Close() {
	s.cancel()
}

// collapseSearchPath collapses duplicate slashes in path, except within the
// "://" scheme separator.
func collapseSearchPath(path string) string {
	const marker = "\x00SCHEME\x00"
	masked := strings.ReplaceAll(path, "://", marker)
	for strings.Contains(masked, "//") {
		masked = strings.ReplaceAll(masked, "//", "/")
	}
	return strings.ReplaceAll(masked, marker, "://")
}

// Search issues GET <baseURL><path>, streaming the "objects" array of the
// JSON response body. Auth headers are intentionally not forwarded on
// search requests.
func (c *Client) Search(ctx context.Context, path string, opts SearchOptions) *SearchStream {
	ctx, cancel := context.WithCancel(ctx)

	stream := &SearchStream{
		out:    make(chan map[string]any),
		errc:   make(chan error, 1),
		cancel: cancel,
	}

	go c.runSearch(ctx, path, opts, stream)

	return stream
}

func (c *Client) runSearch(ctx context.Context, path string, opts SearchOptions, stream *SearchStream) {
	defer close(stream.out)

	fail := func(err error) {
		select {
		case stream.errc <- err:
		default:
		}
	}

	if c.health.isOffline() {
		fail(newError(c.upname, UplinkOffline))
		return
	}

	reqURL := c.baseURL + collapseSearchPath(path)

	headers, err := buildHeaders(c.upname, c.cfg, c.main, headerOptions{
		overrides:     opts.Headers,
		explicitProxy: c.explicitProxy,
		forwardAuth:   false,
	})
	if err != nil {
		fail(err)
		return
	}

	c.health.recordAttempt()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		fail(err)
		return
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.health.recordFailure()
		fail(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.health.recordFailure()
		fail(statusError(c.upname, resp.StatusCode))
		return
	}
	c.health.recordSuccess()

	iter := jsoniter.Parse(jsoniter.ConfigCompatibleWithStandardLibrary, resp.Body, 4096)

	aborted := false
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
		if field != "objects" {
			iter.Skip()
			return true
		}
		iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
			var obj map[string]any
			iter.ReadVal(&obj)
			select {
			case stream.out <- obj:
				return true
			case <-ctx.Done():
				aborted = true
				return false
			}
		})
		return !aborted
	})

	if iter.Error != nil && iter.Error.Error() != "EOF" {
		fail(fmt.Errorf("%s: decode search response: %w", c.upname, iter.Error))
	}
}
