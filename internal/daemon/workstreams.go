package daemon

import (
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/sandipndev/vex/internal/idgen"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/store"
)

func workstreamInfo(w *store.Workstream, sessionExists bool) proto.WorkstreamInfo {
	agentIDs := make([]string, 0, len(w.Agents))
	for id := range w.Agents {
		agentIDs = append(agentIDs, id)
	}
	shellIDs := make([]string, 0, len(w.Shells))
	for id := range w.Shells {
		shellIDs = append(shellIDs, id)
	}
	return proto.WorkstreamInfo{
		ID:           w.ID,
		RepoID:       w.RepoID,
		Name:         w.Name,
		Branch:       w.Branch,
		WorktreePath: w.WorktreePath,
		SessionName:  w.SessionName,
		Status:       store.RecomputeStatus(w, sessionExists),
		CreatedAt:    w.CreatedAt,
		AgentIDs:     agentIDs,
		ShellIDs:     shellIDs,
	}
}

// handleWorkstreamCreate resolves the repo, enforces name uniqueness,
// optionally fetches, resolves the branch, adds the worktree, runs
// post-create hooks with rollback, opens the multiplexer session, renames
// its initial window, then commits. Each step after the initial
// validation runs outside the store lock, following the same
// critical-section discipline as the rest of the mutation handlers.
func (d *Daemon) handleWorkstreamCreate(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.WorkstreamCreateRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	repo, ok := d.store.FindRepo(req.RepoID)
	if !ok {
		d.store.Unlock()
		return "", nil, errNotFound("repository not found: " + req.RepoID)
	}
	name := req.Name
	if name == "" {
		name = req.Branch
	}
	if name == "" {
		name = repo.DefaultBranch
	}
	if name == "" {
		d.store.Unlock()
		return "", nil, errInternal("workstream requires a name or a branch")
	}
	if d.store.WorkstreamNameTaken(req.RepoID, name) {
		d.store.Unlock()
		return "", nil, errInternal(fmt.Sprintf("workstream name %q already in use in this repository", name))
	}
	repoPath := repo.Path
	defaultBranch := repo.DefaultBranch
	d.store.Unlock()

	if req.FetchLatest {
		if err := d.git.Fetch(repoPath); err != nil {
			return "", nil, errInternal("fetch failed: " + err.Error())
		}
	}

	branch := req.Branch
	if branch == "" {
		branch = defaultBranch
	}

	wsID := idgen.New("ws")
	worktreePath := d.worktreePath(wsID)

	if err := d.git.AddWorktree(repoPath, worktreePath, branch); err != nil {
		return "", nil, errInternal(err.Error())
	}

	for _, hook := range d.cfg.Repo.Register.Hooks {
		if err := runHook(worktreePath, hook.Run); err != nil {
			d.git.RemoveWorktree(repoPath, worktreePath, branch)
			return "", nil, errInternal(err.Error())
		}
	}

	session := sessionName(wsID)
	if err := d.tmux.NewSession(session, worktreePath); err != nil {
		d.git.RemoveWorktree(repoPath, worktreePath, branch)
		return "", nil, errInternal(err.Error())
	}
	if err := d.tmux.RenameWindow(session, 0, "shell"); err != nil {
		log.Printf("daemon: workstream %s: rename initial window failed: %v", wsID, err)
	}

	w := &store.Workstream{
		ID:           wsID,
		RepoID:       req.RepoID,
		Name:         name,
		Branch:       branch,
		WorktreePath: worktreePath,
		SessionName:  session,
		CreatedAt:    time.Now(),
	}

	d.store.Lock()
	d.store.InsertWorkstream(req.RepoID, w)
	d.store.Unlock()

	if err := d.store.Persist(); err != nil {
		d.tmux.KillSession(session)
		d.git.RemoveWorktree(repoPath, worktreePath, branch)
		d.store.Lock()
		d.store.DeleteWorkstream(req.RepoID, wsID)
		d.store.Unlock()
		return "", nil, errInternal(err.Error())
	}

	return proto.RespWorkstreamCreated, workstreamInfo(w, true), nil
}

// runHook runs a single configured post-create hook string through the
// shell, in dir, mirroring project.go's bootstrap-command execution.
func runHook(dir, command string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return fmt.Errorf("hook %q failed: %s", command, detail)
		}
		return fmt.Errorf("hook %q failed: %w", command, err)
	}
	return nil
}

func (d *Daemon) handleWorkstreamList(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.WorkstreamListRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	var workstreams []*store.Workstream
	if req.RepoID != "" {
		repo, ok := d.store.FindRepo(req.RepoID)
		if !ok {
			d.store.Unlock()
			return "", nil, errNotFound("repository not found: " + req.RepoID)
		}
		for _, w := range repo.Workstreams {
			workstreams = append(workstreams, w)
		}
	} else {
		for _, repo := range d.store.ListRepos() {
			for _, w := range repo.Workstreams {
				workstreams = append(workstreams, w)
			}
		}
	}
	d.store.Unlock()

	infos := make([]proto.WorkstreamInfo, len(workstreams))
	for i, w := range workstreams {
		infos[i] = workstreamInfo(w, d.tmux.HasSession(w.SessionName))
	}
	return proto.RespWorkstreamList, proto.WorkstreamListResponse{Workstreams: infos}, nil
}

func (d *Daemon) handleWorkstreamDelete(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.WorkstreamDeleteRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	w, repo, ok := d.store.FindWorkstream(req.WorkstreamID)
	if !ok {
		d.store.Unlock()
		return "", nil, errNotFound("workstream not found: " + req.WorkstreamID)
	}
	repoID := repo.ID
	d.store.Unlock()

	d.destroyWorkstream(repoID, w.ID)

	if err := d.store.Persist(); err != nil {
		return "", nil, errInternal(err.Error())
	}
	return proto.RespOk, nil, nil
}

// destroyWorkstream is the common teardown path shared by
// WorkstreamDelete and the cascading RepoUnregister: best-effort kill
// every running agent's supervisor, kill the session, remove the
// worktree, and remove the entity from the graph. It does not persist —
// callers persist once after all their cascading deletes are done.
func (d *Daemon) destroyWorkstream(repoID, wsID string) {
	d.store.Lock()
	w, repo, ok := d.store.FindWorkstream(wsID)
	if !ok {
		d.store.Unlock()
		return
	}
	var agentIDs []string
	for id, a := range w.Agents {
		if a.Status == store.AgentRunning {
			agentIDs = append(agentIDs, id)
		}
	}
	repoPath := repo.Path
	worktreePath := w.WorktreePath
	branch := w.Branch
	session := w.SessionName
	d.store.Unlock()

	for _, id := range agentIDs {
		d.stopSupervisor(id)
	}

	d.tmux.KillSession(session)
	d.git.RemoveWorktree(repoPath, worktreePath, branch)

	d.store.Lock()
	d.store.DeleteWorkstream(repoID, wsID)
	d.store.Unlock()
}
