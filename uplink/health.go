package uplink

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// healthTracker is the per-uplink circuit breaker. Its two fields are the
// only mutable state on a Client; all mutation is confined behind mu, since
// offline/online transitions produce log output that must stay ordered with
// the state change.
type healthTracker struct {
	upname   string
	maxFails int
	failTimeout time.Duration
	logger   *zap.Logger

	mu              sync.Mutex
	failedRequests  int
	lastRequestTime time.Time
	hasRequestTime  bool
}

func newHealthTracker(upname string, maxFails int, failTimeout time.Duration, logger *zap.Logger) *healthTracker {
	return &healthTracker{
		upname:      upname,
		maxFails:    maxFails,
		failTimeout: failTimeout,
		logger:      logger,
	}
}

// isOffline reports the breaker as open when failed_requests >= max_fails
// and the last request happened within fail_timeout of now.
func (h *healthTracker) isOffline() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isOfflineLocked(time.Now())
}

func (h *healthTracker) isOfflineLocked(now time.Time) bool {
	if h.failedRequests < h.maxFails {
		return false
	}
	if !h.hasRequestTime {
		return false
	}
	return now.Sub(h.lastRequestTime) < h.failTimeout
}

// recordAttempt is invoked whenever a request is about to be issued (prior
// to knowing its outcome), updating last_request_time.
func (h *healthTracker) recordAttempt() {
	h.mu.Lock()
	h.lastRequestTime = time.Now()
	h.hasRequestTime = true
	h.mu.Unlock()
}

// recordFailure increments the failure counter by one. Every failed
// attempt, whether it's the only attempt a call makes (tarball, search) or
// one of several an internal retry loop makes (metadata), increments the
// same shared counter, so consecutive failures accumulate across separate
// top-level calls rather than resetting with each one.
func (h *healthTracker) recordFailure() {
	h.mu.Lock()
	wasOffline := h.failedRequests >= h.maxFails
	h.failedRequests++
	nowOffline := h.failedRequests >= h.maxFails
	h.lastRequestTime = time.Now()
	h.hasRequestTime = true
	failed := h.failedRequests
	h.mu.Unlock()

	if nowOffline && !wasOffline {
		h.logger.Warn("uplink offline",
			zap.String("upname", h.upname),
			zap.Int("failed_requests", failed),
			zap.Int("max_fails", h.maxFails))
	}
}

// recordSuccess resets the failure counter, logging back-online only when
// the uplink had actually tripped the breaker.
func (h *healthTracker) recordSuccess() {
	h.mu.Lock()
	wasOffline := h.failedRequests >= h.maxFails
	h.failedRequests = 0
	h.lastRequestTime = time.Now()
	h.hasRequestTime = true
	h.mu.Unlock()

	if wasOffline {
		h.logger.Info("uplink back online", zap.String("upname", h.upname))
	}
}

// failedCount reports the current consecutive-failure count, for tests and
// status reporting.
func (h *healthTracker) failedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failedRequests
}
