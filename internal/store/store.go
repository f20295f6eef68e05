package store

import (
	"fmt"
	"sync"
)

// Store wraps a Graph behind a single process-wide mutex: held only for
// the duration of inspection or mutation, never across a process spawn
// or a filesystem operation. All lookups are by id through indexed scans
// over the repo list, acceptable at hundreds-of-workstreams scale.
type Store struct {
	mu   sync.Mutex
	path string
	g    *Graph
}

// Open loads path if it exists, or starts with an empty graph.
func Open(path string) (*Store, error) {
	g, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", path, err)
	}
	return &Store{path: path, g: g}, nil
}

// Lock and Unlock expose the store's mutex so daemon dispatch code can
// follow a consistent critical-section discipline: acquire, inspect or
// mutate in-memory state, release before any side effect, then
// re-acquire to commit. Persist() itself acquires internally, so callers
// must not hold the lock when calling it.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// Persist snapshots the graph and writes it atomically. Must be called
// without the store lock held (it takes it itself for the snapshot, then
// releases before the filesystem write, since persistence is a suspension
// point that must never happen under the lock).
func (s *Store) Persist() error {
	s.mu.Lock()
	snapshot := cloneGraph(s.g)
	s.mu.Unlock()
	return save(s.path, snapshot)
}

// ─── Repository operations (caller must hold the lock) ───────────────────

func (s *Store) FindRepo(id string) (*Repository, bool) {
	r, ok := s.g.Repos[id]
	return r, ok
}

func (s *Store) RepoByPath(path string) (*Repository, bool) {
	for _, r := range s.g.Repos {
		if r.Path == path {
			return r, true
		}
	}
	return nil, false
}

func (s *Store) ListRepos() []*Repository {
	out := make([]*Repository, 0, len(s.g.Repos))
	for _, r := range s.g.Repos {
		out = append(out, r)
	}
	return out
}

func (s *Store) InsertRepo(r *Repository) {
	if r.Workstreams == nil {
		r.Workstreams = make(map[string]*Workstream)
	}
	s.g.Repos[r.ID] = r
}

// DeleteRepo removes a repo and, by ownership cascade, everything under it.
func (s *Store) DeleteRepo(id string) {
	delete(s.g.Repos, id)
}

// ─── Workstream operations ────────────────────────────────────────────────

// FindWorkstream scans every repo for a workstream id, since workstreams
// are addressed by their own opaque id independent of their parent.
func (s *Store) FindWorkstream(id string) (*Workstream, *Repository, bool) {
	for _, r := range s.g.Repos {
		if w, ok := r.Workstreams[id]; ok {
			return w, r, true
		}
	}
	return nil, nil, false
}

func (s *Store) WorkstreamNameTaken(repoID, name string) bool {
	r, ok := s.g.Repos[repoID]
	if !ok {
		return false
	}
	for _, w := range r.Workstreams {
		if w.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) InsertWorkstream(repoID string, w *Workstream) {
	r, ok := s.g.Repos[repoID]
	if !ok {
		return
	}
	if w.Agents == nil {
		w.Agents = make(map[string]*Agent)
	}
	if w.Shells == nil {
		w.Shells = make(map[string]*Shell)
	}
	r.Workstreams[w.ID] = w
}

func (s *Store) DeleteWorkstream(repoID, wsID string) {
	if r, ok := s.g.Repos[repoID]; ok {
		delete(r.Workstreams, wsID)
	}
}

// ─── Agent operations ──────────────────────────────────────────────────────

func (s *Store) FindAgent(id string) (*Agent, *Workstream, bool) {
	for _, r := range s.g.Repos {
		for _, w := range r.Workstreams {
			if a, ok := w.Agents[id]; ok {
				return a, w, true
			}
		}
	}
	return nil, nil, false
}

func (s *Store) InsertAgent(wsID string, a *Agent) {
	if w, _, ok := s.FindWorkstream(wsID); ok {
		w.Agents[a.ID] = a
	}
}

func (s *Store) DeleteAgent(wsID, agentID string) {
	if w, _, ok := s.FindWorkstream(wsID); ok {
		delete(w.Agents, agentID)
	}
}

// NextAgentID allocates the next sequential agent_NNN id for a workstream.
// Must be called with the lock held; mutates w.NextAgentSeq.
func NextAgentID(w *Workstream) string {
	w.NextAgentSeq++
	return fmt.Sprintf("agent_%03d", w.NextAgentSeq)
}

// ─── Shell operations ──────────────────────────────────────────────────────

func (s *Store) FindShell(id string) (*Shell, *Workstream, bool) {
	for _, r := range s.g.Repos {
		for _, w := range r.Workstreams {
			if sh, ok := w.Shells[id]; ok {
				return sh, w, true
			}
		}
	}
	return nil, nil, false
}

func (s *Store) InsertShell(wsID string, sh *Shell) {
	if w, _, ok := s.FindWorkstream(wsID); ok {
		w.Shells[sh.ID] = sh
	}
}

func (s *Store) DeleteShell(wsID, shellID string) {
	if w, _, ok := s.FindWorkstream(wsID); ok {
		delete(w.Shells, shellID)
	}
}

// ─── Invariant helpers ──────────────────────────────────────────────────────

// RecomputeStatus returns the workstream's status: Stopped iff
// sessionExists is false; otherwise Running if any agent is Running,
// else Idle.
func RecomputeStatus(w *Workstream, sessionExists bool) string {
	if !sessionExists {
		return WorkstreamStopped
	}
	for _, a := range w.Agents {
		if a.Status == AgentRunning {
			return WorkstreamRunning
		}
	}
	return WorkstreamIdle
}

func cloneGraph(g *Graph) *Graph {
	out := newGraph()
	for rid, r := range g.Repos {
		rc := *r
		rc.Workstreams = make(map[string]*Workstream, len(r.Workstreams))
		for wid, w := range r.Workstreams {
			wc := *w
			wc.Agents = make(map[string]*Agent, len(w.Agents))
			for aid, a := range w.Agents {
				ac := *a
				wc.Agents[aid] = &ac
			}
			wc.Shells = make(map[string]*Shell, len(w.Shells))
			for sid, sh := range w.Shells {
				shc := *sh
				wc.Shells[sid] = &shc
			}
			rc.Workstreams[wid] = &wc
		}
		out.Repos[rid] = &rc
	}
	return out
}
