package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/askmesh/askmesh/backend"
	"github.com/askmesh/askmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ backend.Generator = (*Generator)(nil)

// newTestServer serves the minimal API surface the generator touches: the
// root health probe, /api/tags and a streaming /api/chat that emits the
// answer one rune per line.
func newTestServer(t *testing.T, models []string, answer string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		infos := make([]ModelInfo, 0, len(models))
		for _, m := range models {
			infos = append(infos, ModelInfo{Name: m})
		}
		_ = json.NewEncoder(w).Encode(TagsResponse{Models: infos})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		enc := json.NewEncoder(w)
		for _, ru := range answer {
			_ = enc.Encode(ChatResponse{Message: Message{Role: "assistant", Content: string(ru)}})
		}
		_ = enc.Encode(ChatResponse{Done: true, DoneReason: "stop", PromptEvalCount: 3, EvalCount: len(answer)})
	})
	return httptest.NewServer(mux)
}

func newTestGenerator(srv *httptest.Server, optFns ...func(o *GeneratorOptions)) *Generator {
	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	fns := append([]func(o *GeneratorOptions){func(o *GeneratorOptions) {
		o.Client = client
		o.Model = "tiny"
	}}, optFns...)
	return New(fns...)
}

func TestGenerator_LoadSucceedsWhenModelInstalled(t *testing.T) {
	srv := newTestServer(t, []string{"tiny:latest"}, "")
	defer srv.Close()

	g := newTestGenerator(srv)
	require.NoError(t, g.Load(context.Background()))
}

func TestGenerator_LoadFailsWhenModelMissing(t *testing.T) {
	srv := newTestServer(t, []string{"other"}, "")
	defer srv.Close()

	g := newTestGenerator(srv)
	err := g.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestGenerator_LoadFailsWhenServerDown(t *testing.T) {
	srv := newTestServer(t, nil, "")
	srv.Close() // down before the probe

	g := newTestGenerator(srv)
	err := g.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestGenerator_StreamingGenerate(t *testing.T) {
	srv := newTestServer(t, []string{"tiny"}, "hey")
	defer srv.Close()

	g := newTestGenerator(srv)
	respCh, errCh := g.Generate(context.Background(), backend.Request{
		Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "q"}}}},
		Stream:   true,
	})

	var partials int
	var final *backend.Response
	for r := range respCh {
		if r.Partial {
			partials++
			continue
		}
		rc := r
		final = &rc
	}
	require.NoError(t, <-errCh)

	assert.Equal(t, 3, partials)
	require.NotNil(t, final)
	assert.Equal(t, "hey", final.Content.Text())
	assert.Equal(t, "stop", final.FinishReason)
	require.NotNil(t, final.Usage)
	assert.Equal(t, 3, final.Usage.PromptTokens)
}

func TestGenerator_InfoReflectsGPULayers(t *testing.T) {
	accel := New(func(o *GeneratorOptions) { o.Model = "tiny" })
	assert.True(t, accel.Info().Accelerated)
	assert.True(t, accel.Info().Local)

	cpu := NewCPU(func(o *GeneratorOptions) { o.Model = "tiny" })
	assert.False(t, cpu.Info().Accelerated)
	assert.True(t, cpu.Info().Local)
}
