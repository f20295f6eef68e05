package daemon

import (
	"context"
	"log"
	"time"

	"github.com/sandipndev/vex/internal/store"
)

const supervisorInterval = 5 * time.Second

// startSupervisor launches the monitor task for a Running agent: every
// 5 seconds it checks whether the agent's window still exists in its
// workstream's session; on disappearance it transitions the agent to
// Exited, refreshes the workstream status, persists, and terminates. A
// cancellation handle is kept in a mutex-guarded map (a third lock,
// separate from both the entity-graph and token-store locks) so
// AgentKill/WorkstreamDelete can abort it deterministically.
func (d *Daemon) startSupervisor(agentID, wsID string) {
	ctx, cancel := context.WithCancel(context.Background())

	d.supMu.Lock()
	if existing, ok := d.supervisors[agentID]; ok {
		existing()
	}
	d.supervisors[agentID] = cancel
	d.supMu.Unlock()

	go d.runSupervisor(ctx, agentID, wsID)
}

// stopSupervisor cancels and forgets the supervisor for agentID, if one
// is running. It is a no-op if none exists.
func (d *Daemon) stopSupervisor(agentID string) {
	d.supMu.Lock()
	cancel, ok := d.supervisors[agentID]
	delete(d.supervisors, agentID)
	d.supMu.Unlock()
	if ok {
		cancel()
	}
}

func (d *Daemon) runSupervisor(ctx context.Context, agentID, wsID string) {
	ticker := time.NewTicker(supervisorInterval)
	defer ticker.Stop()

	defer func() {
		d.supMu.Lock()
		delete(d.supervisors, agentID)
		d.supMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.checkAgentExited(agentID, wsID) {
				return
			}
		}
	}
}

// checkAgentExited queries tmux for the agent's window and, if it is
// gone, transitions the agent and its workstream and persists. Returns
// true if the supervisor should terminate (either the agent exited, or
// its record has vanished out from under it).
func (d *Daemon) checkAgentExited(agentID, wsID string) bool {
	d.store.Lock()
	a, w, ok := d.store.FindAgent(agentID)
	if !ok {
		d.store.Unlock()
		return true
	}
	if a.Status != store.AgentRunning {
		d.store.Unlock()
		return true
	}
	session := w.SessionName
	window := a.Window
	d.store.Unlock()

	if d.tmux.HasWindow(session, window) {
		return false
	}

	d.store.Lock()
	a, _, ok = d.store.FindAgent(agentID)
	if ok && a.Status == store.AgentRunning {
		a.Status = store.AgentExited
		now := time.Now()
		a.ExitedAt = &now
	}
	d.store.Unlock()

	if err := d.store.Persist(); err != nil {
		log.Printf("daemon: supervisor for %s: persist failed: %v", agentID, err)
	}
	return true
}
