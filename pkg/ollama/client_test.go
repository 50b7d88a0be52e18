package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBaseURL(t *testing.T) {
	got, err := NormalizeBaseURL("localhost:11434/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", got)

	got, err = NormalizeBaseURL("https://gpu.lan/ollama/")
	require.NoError(t, err)
	assert.Equal(t, "https://gpu.lan/ollama", got)

	for _, bad := range []string{"", "   ", "ftp://host", "http://"} {
		_, err := NormalizeBaseURL(bad)
		assert.ErrorIs(t, err, ErrInvalidBaseURL, bad)
	}
}

func TestListModelsAndGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llava:7b","size":123}]}`))
		case "/api/generate":
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "llava:7b", body["model"])
			assert.Equal(t, false, body["stream"])
			assert.Len(t, body["images"], 1)
			_, _ = w.Write([]byte(`{"model":"llava:7b","response":"an aphid","done":true,"prompt_eval_count":12,"eval_count":4,"total_duration":999}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llava:7b", models[0].Name)

	resp, err := client.Generate(context.Background(), GenerateRequest{
		Model:  "llava:7b",
		Prompt: "what is this",
		Images: []string{"AAAA"},
	})
	require.NoError(t, err)
	assert.Equal(t, "an aphid", resp.Response)
	assert.Equal(t, 4, resp.EvalCount)
}

func TestForbiddenAndStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = client.Version(context.Background())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = client.ListModels(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestUnreachableHost(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1", 2*time.Second)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Version(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(srv.URL, 50*time.Millisecond)
	require.NoError(t, err)

	_, err = client.ListModels(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}
