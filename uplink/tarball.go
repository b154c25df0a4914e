package uplink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"go.uber.org/multierr"
)

// TarballOptions configures a single FetchTarball call.
type TarballOptions struct {
	ETag          string
	RemoteAddress string
	Headers       http.Header
}

// TarballStream is the output side of a tarball fetch: a readable byte
// stream whose advertised Content-Length is available before any body byte
// is delivered. Early protocol errors (offline breaker, 404, bad status,
// transport failure) are surfaced the same way a mid-stream ContentMismatch
// is: as the error returned from Read.
type TarballStream struct {
	pr            *io.PipeReader
	pw            *io.PipeWriter
	ready         chan struct{}
	contentLength int64
	cancel        context.CancelFunc

	mu       sync.Mutex
	fetchErr error
	done     bool
}

// ContentLength returns the advertised Content-Length, or -1 if the
// upstream didn't send one. It blocks until that information is known,
// which happens before any body bytes are readable.
func (t *TarballStream) ContentLength() int64 {
	<-t.ready
	return t.contentLength
}

// Read implements io.Reader. Protocol and transport errors, as well as a
// ContentMismatch at end of stream, are returned here.
func (t *TarballStream) Read(p []byte) (int, error) {
	return t.pr.Read(p)
}

// Close aborts the fetch: it cancels the underlying request (releasing its
// connection back to the pool) and unblocks any pending Read. The returned
// error combines the pipe's own close error, if any, with a fetch error that
// was already in flight when Close was called, since both represent failures
// of the same teardown.
func (t *TarballStream) Close() error {
	t.cancel()
	closeErr := t.pr.Close()

	t.mu.Lock()
	fetchErr := t.fetchErr
	t.mu.Unlock()

	return multierr.Combine(fetchErr, closeErr)
}

// finish records the terminal error delivered to the pipe, if any, so Close
// can report it alongside its own close error.
func (t *TarballStream) finish(err error) {
	t.mu.Lock()
	t.fetchErr = err
	t.done = true
	t.mu.Unlock()
}

// FetchTarball performs a streaming GET of an already-absolute tarball URL.
func (c *Client) FetchTarball(ctx context.Context, tarballURL string, opts TarballOptions) *TarballStream {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	stream := &TarballStream{
		pr:            pr,
		pw:            pw,
		ready:         make(chan struct{}),
		contentLength: -1,
		cancel:        cancel,
	}

	go c.runTarballFetch(ctx, tarballURL, opts, stream)

	return stream
}

func (t *TarballStream) markReady(contentLength int64) {
	t.contentLength = contentLength
	close(t.ready)
}

// abort delivers err through the pipe (surfacing it from Read) and records
// it on the stream so a subsequent Close can report it too.
func (t *TarballStream) abort(err error) {
	t.finish(err)
	_ = t.pw.CloseWithError(err)
}

func (c *Client) runTarballFetch(ctx context.Context, tarballURL string, opts TarballOptions, stream *TarballStream) {
	if c.health.isOffline() {
		stream.markReady(-1)
		stream.abort(newError(c.upname, UplinkOffline))
		return
	}

	headers, err := buildHeaders(c.upname, c.cfg, c.main, headerOptions{
		overrides:     opts.Headers,
		remoteAddress: opts.RemoteAddress,
		explicitProxy: c.explicitProxy,
		forwardAuth:   true,
		etag:          opts.ETag,
	})
	if err != nil {
		stream.markReady(-1)
		stream.abort(err)
		return
	}

	c.health.recordAttempt()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
	if err != nil {
		stream.markReady(-1)
		stream.abort(err)
		return
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.health.recordFailure()
		stream.markReady(-1)
		stream.abort(err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// The upstream answered authoritatively that the tarball doesn't
		// exist; that proves the link is up, so it doesn't count against
		// the breaker (mirrored in metadata.go's identical treatment).
		c.health.recordSuccess()
		stream.markReady(-1)
		stream.abort(newError(c.upname, NotFileUplink))
		return
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.health.recordFailure()
		stream.markReady(-1)
		stream.abort(statusError(c.upname, resp.StatusCode))
		return
	}

	c.health.recordSuccess()

	advertised := int64(-1)
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			advertised = n
		}
	}
	stream.markReady(advertised)

	written, err := io.Copy(stream.pw, resp.Body)
	if errors.Is(err, io.ErrUnexpectedEOF) && advertised >= 0 && written != advertised {
		// The body ended before the advertised Content-Length was reached.
		stream.abort(newError(c.upname, ContentMismatch))
		return
	}
	if err != nil {
		stream.abort(err)
		return
	}
	if advertised >= 0 && written != advertised {
		stream.abort(newError(c.upname, ContentMismatch))
		return
	}
	stream.finish(nil)
	_ = stream.pw.Close()
}
