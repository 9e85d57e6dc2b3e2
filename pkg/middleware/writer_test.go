package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockFlusherWriter implements both http.ResponseWriter and http.Flusher.
type mockFlusherWriter struct {
	http.ResponseWriter
	flushed bool
}

func (m *mockFlusherWriter) Flush() {
	m.flushed = true
}

// mockHijackerWriter implements both http.ResponseWriter and http.Hijacker.
type mockHijackerWriter struct {
	http.ResponseWriter
	hijacked bool
}

func (m *mockHijackerWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	m.hijacked = true
	return nil, nil, nil
}

// minimalResponseWriter is a bare http.ResponseWriter without Flusher/Hijacker.
type minimalResponseWriter struct {
	header http.Header
}

func (m *minimalResponseWriter) Header() http.Header {
	if m.header == nil {
		m.header = make(http.Header)
	}
	return m.header
}

func (m *minimalResponseWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

func (m *minimalResponseWriter) WriteHeader(int) {}

func TestStatusWriter_DefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newStatusWriter(rec)

	_, _ = sw.Write([]byte("hello"))

	assert.Equal(t, http.StatusOK, sw.status)
	assert.Equal(t, 5, sw.bytes)
}

func TestStatusWriter_FirstWriteHeaderWins(t *testing.T) {
	sw := newStatusWriter(&minimalResponseWriter{})

	sw.WriteHeader(http.StatusCreated)
	sw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusCreated, sw.status)
}

func TestStatusWriter_Flush_DelegatesToUnderlying(t *testing.T) {
	mock := &mockFlusherWriter{ResponseWriter: httptest.NewRecorder()}
	sw := newStatusWriter(mock)

	sw.Flush()
	assert.True(t, mock.flushed, "Flush should delegate to underlying ResponseWriter")
}

func TestStatusWriter_Flush_NoOpWhenNotSupported(t *testing.T) {
	sw := newStatusWriter(&minimalResponseWriter{})

	assert.NotPanics(t, sw.Flush)
}

func TestStatusWriter_Hijack_DelegatesToUnderlying(t *testing.T) {
	mock := &mockHijackerWriter{ResponseWriter: httptest.NewRecorder()}
	sw := newStatusWriter(mock)

	_, _, err := sw.Hijack()
	assert.NoError(t, err)
	assert.True(t, mock.hijacked)
}

func TestStatusWriter_Hijack_ErrorWhenNotSupported(t *testing.T) {
	sw := newStatusWriter(&minimalResponseWriter{})

	_, _, err := sw.Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
}

func TestStatusWriter_ResponseControllerFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newStatusWriter(rec)

	err := http.NewResponseController(sw).Flush()
	assert.NoError(t, err)
	assert.True(t, rec.Flushed)
}
