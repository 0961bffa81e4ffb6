package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMALService_Episodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime/21/episodes", r.URL.Path)
		assert.Equal(t, "Bearer mal-token", r.Header.Get("Authorization"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "40", r.URL.Query().Get("offset"))
		assert.Equal(t, "title,number,image", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"data":[{"number":41}]}`))
	}))
	defer server.Close()

	mal := NewMALService(server.URL, "mal-token", ClientOptions{})
	raw, err := mal.Episodes(context.Background(), "21", 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"number":41}]}`, string(raw))
}

func TestMALService_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime", r.URL.Path)
		assert.Equal(t, "naruto", r.URL.Query().Get("q"))
		assert.Equal(t, "id,title,main_picture,media_type,start_date", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	mal := NewMALService(server.URL, "mal-token", ClientOptions{})
	_, err := mal.Search(context.Background(), "naruto")
	assert.NoError(t, err)
}

func TestMALService_MissingToken(t *testing.T) {
	mal := NewMALService("http://127.0.0.1:0", "", ClientOptions{})

	_, err := mal.Episodes(context.Background(), "21", 1)
	assert.True(t, errors.Is(err, ErrMALTokenMissing))

	_, err = mal.Search(context.Background(), "naruto")
	assert.True(t, errors.Is(err, ErrMALTokenMissing))
}
