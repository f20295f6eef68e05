package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sandipndev/vex/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.json")

	s, err := store.Open(path)
	require.NoError(t, err)

	s.Lock()
	s.InsertRepo(&store.Repository{ID: "repo_aaaaaa", Name: "demo", Path: "/repos/demo", DefaultBranch: "main", RegisteredAt: time.Now()})
	w := &store.Workstream{ID: "ws_bbbbbb", RepoID: "repo_aaaaaa", Name: "feature", Branch: "feature", CreatedAt: time.Now()}
	s.InsertWorkstream("repo_aaaaaa", w)
	s.InsertAgent("ws_bbbbbb", &store.Agent{ID: "agent_001", WorkstreamID: "ws_bbbbbb", Status: store.AgentRunning, SpawnedAt: time.Now()})
	s.Unlock()

	require.NoError(t, s.Persist())

	reloaded, err := store.Open(path)
	require.NoError(t, err)
	reloaded.Lock()
	defer reloaded.Unlock()

	r, ok := reloaded.FindRepo("repo_aaaaaa")
	require.True(t, ok)
	assert.Equal(t, "demo", r.Name)

	rw, _, ok := reloaded.FindWorkstream("ws_bbbbbb")
	require.True(t, ok)
	assert.Equal(t, "feature", rw.Name)

	a, _, ok := reloaded.FindAgent("agent_001")
	require.True(t, ok)
	assert.Equal(t, store.AgentRunning, a.Status)
}

func TestWorkstreamStatusInvariant(t *testing.T) {
	w := &store.Workstream{Agents: map[string]*store.Agent{
		"agent_001": {Status: store.AgentExited},
	}}

	assert.Equal(t, store.WorkstreamStopped, store.RecomputeStatus(w, false))
	assert.Equal(t, store.WorkstreamIdle, store.RecomputeStatus(w, true))

	w.Agents["agent_002"] = &store.Agent{Status: store.AgentRunning}
	assert.Equal(t, store.WorkstreamRunning, store.RecomputeStatus(w, true))
}

func TestWorkstreamNameUniqueWithinRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	s, err := store.Open(path)
	require.NoError(t, err)

	s.Lock()
	defer s.Unlock()
	s.InsertRepo(&store.Repository{ID: "repo_aaaaaa"})
	s.InsertWorkstream("repo_aaaaaa", &store.Workstream{ID: "ws_1", RepoID: "repo_aaaaaa", Name: "feature"})

	assert.True(t, s.WorkstreamNameTaken("repo_aaaaaa", "feature"))
	assert.False(t, s.WorkstreamNameTaken("repo_aaaaaa", "other"))
}

func TestNextAgentIDSequentialWithinWorkstream(t *testing.T) {
	w := &store.Workstream{}
	assert.Equal(t, "agent_001", store.NextAgentID(w))
	assert.Equal(t, "agent_002", store.NextAgentID(w))
	assert.Equal(t, "agent_003", store.NextAgentID(w))
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	s.Lock()
	defer s.Unlock()
	assert.Empty(t, s.ListRepos())
}
