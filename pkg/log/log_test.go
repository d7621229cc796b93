package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestNewWithWriter_ServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "debug", ServiceName: "amen-live", InstanceID: "hub-a"}, &buf)
	logger.Debug().Msg("hello")

	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "amen-live", entries[0][FieldService])
	assert.Equal(t, "hub-a", entries[0][FieldInstance])
}

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "warn"}, &buf)
	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["message"])
}

func TestWithConnection(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewWithWriter(Config{Level: "info"}, &buf))
	ctx = WithConnection(ctx, "client-1")

	l := Ctx(ctx)
	l.Info().Msg("connected")

	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "client-1", entries[0][FieldClientID])
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(GinMiddleware(NewWithWriter(Config{Level: "info"}, &buf), "/health"))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/missing", func(c *gin.Context) {
		l := Ctx(c.Request.Context())
		l.Info().Msg("inside handler")
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
	assert.Empty(t, buf.String(), "quiet paths log at debug")

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(headerRequestID, "req-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(headerRequestID))

	entries := lines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0][FieldRequestID])
	assert.Equal(t, "warn", entries[1]["level"])
	assert.Equal(t, float64(http.StatusNotFound), entries[1][FieldStatus])
}
