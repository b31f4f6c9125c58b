package s3storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/agribot/pkg/config"
)

func TestObjectKey(t *testing.T) {
	c, err := New(config.S3Config{Endpoint: "localhost:9000", Bucket: "b", Prefix: "/uploads/", Region: "us-east-1"})
	require.NoError(t, err)

	key := c.ObjectKey("abc123")
	assert.True(t, strings.HasPrefix(key, "uploads/abc123/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotEqual(t, key, c.ObjectKey("abc123"), "keys are unique")
}

func TestPutImage(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		ctype  string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, ctype, body = r.Method, r.URL.Path, r.Header.Get("Content-Type"), data
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(config.S3Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		Bucket:    "agribot",
		AccessKey: "key",
		SecretKey: "secret",
		Prefix:    "uploads",
	})
	require.NoError(t, err)

	key, err := c.PutImage(context.Background(), "abc", []byte("jpeg-bytes"), "")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/agribot/"+key, path)
	assert.Equal(t, "image/jpeg", ctype)
	assert.Contains(t, string(body), "jpeg-bytes")
}
