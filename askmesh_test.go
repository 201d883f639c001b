package askmesh

import (
	"context"
	"testing"

	"github.com/askmesh/askmesh/assistant"
	"github.com/askmesh/askmesh/backend"
	"github.com/askmesh/askmesh/core"
	"github.com/askmesh/askmesh/search"
	"github.com/askmesh/askmesh/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskMesh_AskSyncRoundTrip(t *testing.T) {
	gen := backend.NewMockGenerator("mock", "test")
	gen.AddResponse("what is go", "a programming language")

	idx := search.NewIndex()
	idx.Add("Go", "https://go.dev", "go programming", nil)

	m := New()
	m.RegisterAssistant(assistant.New("search", idx, []assistant.Candidate{
		{Name: "mock", Generator: gen},
	}))

	query := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "what is go"}}}
	invocationID, events, err := m.AskSync(context.Background(), "s1", "search", query)
	require.NoError(t, err)
	assert.NotEmpty(t, invocationID)

	var answer string
	for _, ev := range events {
		if ev.IsFinalResponse() {
			answer = ev.Text()
		}
	}
	assert.Equal(t, "a programming language", answer)
}

func TestAskMesh_AskUnknownAssistant(t *testing.T) {
	m := New()
	_, _, _, err := m.AskText(context.Background(), "s1", "ghost", "q")
	require.Error(t, err)
}

func TestBuildCandidates_FollowsPreferenceOrder(t *testing.T) {
	s := settings.Default()
	candidates := BuildCandidates(s)

	require.Len(t, candidates, 3)
	assert.Equal(t, "remote", candidates[0].Name)
	assert.Equal(t, "accelerated", candidates[1].Name)
	assert.Equal(t, "cpu", candidates[2].Name)

	assert.False(t, candidates[0].Generator.Info().Local)
	assert.True(t, candidates[1].Generator.Info().Accelerated)
	assert.False(t, candidates[2].Generator.Info().Accelerated)
}

func TestBuildCandidates_SkipsUnknownNames(t *testing.T) {
	s := settings.Default()
	s.Backends.Preference = []string{"cpu"}

	candidates := BuildCandidates(s)
	require.Len(t, candidates, 1)
	assert.Equal(t, "cpu", candidates[0].Name)
}

func TestBuildCandidates_AnthropicRemote(t *testing.T) {
	s := settings.Default()
	s.Backends.Preference = []string{"remote"}
	s.Remote.Provider = "anthropic"

	candidates := BuildCandidates(s)
	require.Len(t, candidates, 1)
	assert.Equal(t, "anthropic", candidates[0].Generator.Info().Provider)
}

func TestBuildProvider_SelectsByName(t *testing.T) {
	s := settings.Default()
	assert.Equal(t, "index", BuildProvider(s).Name())

	s.Search.Provider = "searxng"
	s.Search.SearxURL = "https://searx.example.org"
	assert.Equal(t, "searxng", BuildProvider(s).Name())
}
