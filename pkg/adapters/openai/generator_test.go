package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/branchtale/pkg/adapters/openai"
	"github.com/aretw0/branchtale/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.ChoiceGenerator = (*openai.Generator)(nil)

func fakeServer(t *testing.T, replies []string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		choices := make([]map[string]any, 0, len(replies))
		for i, text := range replies {
			choices = append(choices, map[string]any{
				"index":         i,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "stop",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"model":   "test-model",
			"choices": choices,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerator_Propose(t *testing.T) {
	var req map[string]any
	srv := fakeServer(t, []string{
		"Open the letter by candlelight. Then read it twice.",
		"  Follow the footprints into the garden  ",
		"",
	}, &req)

	gen := openai.New("test-key", srv.URL+"/v1", openai.WithModel("test-model"))
	got, err := gen.Propose(context.Background(), "A detective finds a hidden letter.\nProvide one creative continuation:", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Open the letter by candlelight", "Follow the footprints into the garden"}, got)

	assert.Equal(t, "test-model", req["model"])
	assert.EqualValues(t, 3, req["n"])
	assert.EqualValues(t, openai.DefaultMaxTokens, req["max_tokens"])
	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	assert.Contains(t, user["content"], "Provide one creative continuation:")
}

func TestGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	gen := openai.New("test-key", srv.URL+"/v1")
	_, err := gen.Propose(context.Background(), "prefix", 2)
	assert.Error(t, err)
}

func TestGenerator_ZeroCountSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	got, err := openai.New("k", srv.URL).Propose(context.Background(), "prefix", 0)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestFirstSentence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Climb the tower. It is tall.", "Climb the tower"},
		{"  no period at all  ", "no period at all"},
		{`"Quoted choice here."`, "Quoted choice here"},
		{".", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, openai.FirstSentence(tt.in), "input %q", tt.in)
	}
}
