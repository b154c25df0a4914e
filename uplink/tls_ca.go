package uplink

import (
	"crypto/x509"
	"errors"
	"os"
	"sync"
)

var errInvalidCABundle = errors.New("no certificates found in CA bundle")

// tlsCAPool lazily reads a PEM CA bundle from disk exactly once and caches
// the resulting pool for the lifetime of the client.
type tlsCAPool struct {
	path string

	once sync.Once
	pool *x509.CertPool
	err  error
}

func newTLSCAPool(path string) *tlsCAPool {
	if path == "" {
		return nil
	}
	return &tlsCAPool{path: path}
}

func (c *tlsCAPool) load() (*x509.CertPool, error) {
	c.once.Do(func() {
		data, err := os.ReadFile(c.path)
		if err != nil {
			c.err = err
			return
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			c.err = errInvalidCABundle
			return
		}
		c.pool = pool
	})
	return c.pool, c.err
}
