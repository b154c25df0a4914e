package uplink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchStreamsObjectsAndDropsEnvelope(t *testing.T) {
	const body = `{
		"objects": [
			{"package": {"name": "lodash"}},
			{"package": {"name": "left-pad"}}
		],
		"total": 2,
		"date": "2024-01-01T00:00:00.000Z"
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "search must not forward auth")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := UplinkConfig{Auth: &AuthConfig{Type: AuthBearer, Token: "secret"}}
	c := newTestClient(t, srv.URL, cfg)

	stream := c.Search(context.Background(), "/-/v1/search?text=lo", SearchOptions{})
	defer stream.Close()

	var names []string
	for {
		obj, ok := stream.Next()
		if !ok {
			break
		}
		pkg, _ := obj["package"].(map[string]any)
		names = append(names, pkg["name"].(string))
	}

	require.NoError(t, stream.Err())
	assert.Equal(t, []string{"lodash", "left-pad"}, names)
}

func TestSearchCollapsesDuplicateSlashesExceptScheme(t *testing.T) {
	assert.Equal(t, "https://registry.example.com/-/v1/search", collapseSearchPath("https://registry.example.com//-/v1//search"))
}

func TestSearchClosePropagatesContextCancellation(t *testing.T) {
	blockCh := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"objects":[{"package":{"name":"a"}}`))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
		close(blockCh)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, UplinkConfig{})

	stream := c.Search(context.Background(), "/-/v1/search?text=a", SearchOptions{})
	obj, ok := stream.Next()
	require.True(t, ok)
	assert.Equal(t, "a", obj["package"].(map[string]any)["name"])

	stream.Close()
	<-blockCh
}

func TestSearchReturnsStatusErrorOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, UplinkConfig{})

	stream := c.Search(context.Background(), "/-/v1/search?text=a", SearchOptions{})
	_, ok := stream.Next()
	assert.False(t, ok)

	err := stream.Err()
	require.Error(t, err)
	var uplinkErr *Error
	require.ErrorAs(t, err, &uplinkErr)
	assert.Equal(t, BadStatusCode, uplinkErr.Kind)
}
