package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Seeker220/letswatch/config"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew_Level(t *testing.T) {
	logger := New(config.LogConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = New(config.LogConfig{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestMiddleware_LogsRouteAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	var handlerLogger logrus.FieldLogger
	r := mux.NewRouter()
	r.Use(Middleware(logger))
	r.HandleFunc("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		handlerLogger = FromContext(r.Context(), nil)
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/items/7", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.NotNil(t, handlerLogger)
	assert.Contains(t, buf.String(), `"route":"/api/items/{id}"`)
	assert.Contains(t, buf.String(), `"status":418`)
}

func TestMiddleware_KeepsClientRequestID(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	r := mux.NewRouter()
	r.Use(Middleware(logger))
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestFromContext_Fallback(t *testing.T) {
	fallback := logrus.New()
	assert.Equal(t, fallback, FromContext(context.Background(), fallback))
}
