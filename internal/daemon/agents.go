package daemon

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/store"
)

func agentInfo(a *store.Agent) proto.AgentInfo {
	return proto.AgentInfo{
		ID:           a.ID,
		WorkstreamID: a.WorkstreamID,
		Window:       a.Window,
		Prompt:       a.Prompt,
		Status:       a.Status,
		ExitCode:     a.ExitCode,
		SpawnedAt:    a.SpawnedAt,
		ExitedAt:     a.ExitedAt,
	}
}

// handleAgentSpawn resolves the workstream, verifies its session is
// alive, allocates an id, opens a new window, sends the agent command
// line with its prompt single-quote-escaped, then commits and starts a
// supervisor.
func (d *Daemon) handleAgentSpawn(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.AgentSpawnRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	w, _, ok := d.store.FindWorkstream(req.WorkstreamID)
	if !ok {
		d.store.Unlock()
		return "", nil, errNotFound("workstream not found: " + req.WorkstreamID)
	}
	session := w.SessionName
	worktreePath := w.WorktreePath
	d.store.Unlock()

	if !d.tmux.HasSession(session) {
		return "", nil, errInternal(fmt.Sprintf("workstream %s's session is not running", req.WorkstreamID))
	}

	window, err := d.tmux.NewWindow(session, "agent", worktreePath, nil)
	if err != nil {
		return "", nil, errInternal(err.Error())
	}

	commandLine := d.cfg.AgentCommand() + " " + singleQuote(req.Prompt)
	if err := d.tmux.SendKeys(session, window, commandLine); err != nil {
		d.tmux.KillWindow(session, window)
		return "", nil, errInternal(err.Error())
	}

	d.store.Lock()
	agentID := store.NextAgentID(w)
	a := &store.Agent{
		ID:           agentID,
		WorkstreamID: req.WorkstreamID,
		Window:       window,
		Prompt:       req.Prompt,
		Status:       store.AgentRunning,
		SpawnedAt:    time.Now(),
	}
	d.store.InsertAgent(req.WorkstreamID, a)
	d.store.Unlock()

	if err := d.store.Persist(); err != nil {
		return "", nil, errInternal(err.Error())
	}

	d.startSupervisor(agentID, req.WorkstreamID)

	return proto.RespAgentSpawned, agentInfo(a), nil
}

// singleQuote wraps s in single quotes for shell keystroke injection,
// escaping any embedded single quote with the standard '\'' trick.
func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// handleAgentSpawnInPlace checks that the workstream's session is running
// and has a window with the requested index, constructs the exec command
// line, and hands it back
// along with a newly registered agent record. The daemon never runs this
// command itself — the client execs it after verifying that the leading
// binary matches its locally configured agent binary, a defense against
// a malicious daemon instructing a client to run something else. The
// request carries only a window index, not a session name, so the daemon
// does not check that the caller's own window is in the workstream's
// session.
func (d *Daemon) handleAgentSpawnInPlace(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.AgentSpawnInPlaceRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	w, _, ok := d.store.FindWorkstream(req.WorkstreamID)
	if !ok {
		d.store.Unlock()
		return "", nil, errNotFound("workstream not found: " + req.WorkstreamID)
	}
	session := w.SessionName
	d.store.Unlock()

	if !d.tmux.HasSession(session) {
		return "", nil, errInternal(fmt.Sprintf("workstream %s's session is not running", req.WorkstreamID))
	}
	if !d.tmux.HasWindow(session, req.Window) {
		return "", nil, errInternal(fmt.Sprintf("window %d not found in session %s", req.Window, session))
	}

	command := strings.Fields(d.cfg.AgentCommand())
	if req.Prompt != "" {
		command = append(command, req.Prompt)
	}

	d.store.Lock()
	agentID := store.NextAgentID(w)
	a := &store.Agent{
		ID:           agentID,
		WorkstreamID: req.WorkstreamID,
		Window:       req.Window,
		Prompt:       req.Prompt,
		Status:       store.AgentRunning,
		SpawnedAt:    time.Now(),
	}
	d.store.InsertAgent(req.WorkstreamID, a)
	d.store.Unlock()

	if err := d.store.Persist(); err != nil {
		return "", nil, errInternal(err.Error())
	}

	d.startSupervisor(agentID, req.WorkstreamID)

	return proto.RespAgentSpawnInPlace, proto.AgentSpawnInPlaceResponse{
		Agent:   agentInfo(a),
		Command: command,
	}, nil
}

func (d *Daemon) handleAgentKill(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.AgentKillRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	a, w, ok := d.store.FindAgent(req.AgentID)
	if !ok {
		d.store.Unlock()
		return "", nil, errNotFound("agent not found: " + req.AgentID)
	}
	session := w.SessionName
	window := a.Window
	d.store.Unlock()

	// Abort the supervisor before mutating state so it cannot race a
	// state transition we are about to perform ourselves.
	d.stopSupervisor(req.AgentID)

	d.tmux.KillWindow(session, window)

	d.store.Lock()
	if a.Status == store.AgentRunning {
		a.Status = store.AgentExited
		now := time.Now()
		a.ExitedAt = &now
	}
	d.store.Unlock()

	if err := d.store.Persist(); err != nil {
		return "", nil, errInternal(err.Error())
	}
	return proto.RespOk, nil, nil
}

func (d *Daemon) handleAgentList(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.AgentListRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	w, _, ok := d.store.FindWorkstream(req.WorkstreamID)
	if !ok {
		d.store.Unlock()
		return "", nil, errNotFound("workstream not found: " + req.WorkstreamID)
	}
	infos := make([]proto.AgentInfo, 0, len(w.Agents))
	for _, a := range w.Agents {
		infos = append(infos, agentInfo(a))
	}
	d.store.Unlock()

	return proto.RespAgentList, proto.AgentListResponse{Agents: infos}, nil
}
