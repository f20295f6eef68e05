// Package daemon implements vexd: the long-lived process that owns the
// entity graph, dispatches protocol commands, and spawns/supervises git,
// tmux, and shell-host child processes. Grounded on daemon.go's Daemon
// type and handleConn switch, generalized from a flat instance map to the
// repository/workstream/agent/shell graph in internal/store.
package daemon

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sandipndev/vex/internal/gitctl"
	"github.com/sandipndev/vex/internal/store"
	"github.com/sandipndev/vex/internal/tmuxctl"
	"github.com/sandipndev/vex/internal/tokenstore"
)

// Version is the daemon's reported version string, set at build time via
// -ldflags; defaulting to "dev" mirrors cmd/groved's main.go.
var Version = "dev"

// Daemon is the central supervisor: it owns the entity graph and the
// token store, and spawns/monitors external processes on their behalf.
type Daemon struct {
	rootDir string
	cfg     *Config

	store  *store.Store
	tokens *tokenstore.Store
	tmux   *tmuxctl.Controller
	git    *gitctl.Controller

	startedAt time.Time

	clientsMu sync.Mutex
	clients   int

	supMu       sync.Mutex
	supervisors map[string]func() // agent id -> cancel

	hub *shellHub

	pendingMu sync.Mutex
	pending   map[string]pendingShell // session:window -> reservation
}

// New constructs a Daemon rooted at rootDir ($VEX_HOME), loading any
// persisted entity graph, token store, and config.yaml found there.
func New(rootDir string) (*Daemon, error) {
	for _, sub := range []string{"daemon", "daemon/tls", "worktrees"} {
		if err := os.MkdirAll(filepath.Join(rootDir, sub), 0o700); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(filepath.Join(rootDir, "daemon", "repos.json"))
	if err != nil {
		return nil, fmt.Errorf("daemon: open entity graph: %w", err)
	}
	toks, err := tokenstore.Open(filepath.Join(rootDir, "daemon", "tokens.json"))
	if err != nil {
		return nil, fmt.Errorf("daemon: open token store: %w", err)
	}
	cfg, err := LoadConfig(filepath.Join(rootDir, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("daemon: load config: %w", err)
	}

	d := &Daemon{
		rootDir:     rootDir,
		cfg:         cfg,
		store:       st,
		tokens:      toks,
		tmux:        tmuxctl.New(),
		git:         gitctl.New(),
		startedAt:   time.Now(),
		supervisors: make(map[string]func()),
		hub:         newShellHub(),
		pending:     make(map[string]pendingShell),
	}

	d.reconcile()

	return d, nil
}

func (d *Daemon) worktreesDir() string {
	return filepath.Join(d.rootDir, "worktrees")
}

func (d *Daemon) worktreePath(wsID string) string {
	return filepath.Join(d.worktreesDir(), wsID)
}

func sessionName(wsID string) string {
	return "vex-" + wsID
}

func (d *Daemon) incClients() {
	d.clientsMu.Lock()
	d.clients++
	d.clientsMu.Unlock()
}

func (d *Daemon) decClients() {
	d.clientsMu.Lock()
	d.clients--
	d.clientsMu.Unlock()
}

func (d *Daemon) clientCount() int {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()
	return d.clients
}

// reconcile enumerates live multiplexer sessions once at startup and
// brings the persisted graph in line with reality: missing sessions stop
// their workstream and exit its running agents; surviving running agents
// get a fresh supervisor.
func (d *Daemon) reconcile() {
	live, err := d.tmux.ListSessions()
	if err != nil {
		log.Printf("daemon: reconcile: list-sessions failed, assuming none live: %v", err)
	}
	liveSet := make(map[string]bool, len(live))
	for _, s := range live {
		liveSet[s] = true
	}

	type toStart struct {
		agentID, wsID string
	}
	var toSupervise []toStart
	var touched bool

	d.store.Lock()
	for _, repo := range d.store.ListRepos() {
		for _, w := range repo.Workstreams {
			sessionExists := liveSet[sessionName(w.ID)]
			if !sessionExists {
				for _, a := range w.Agents {
					if a.Status == store.AgentRunning {
						a.Status = store.AgentExited
						now := time.Now()
						a.ExitedAt = &now
						touched = true
					}
				}
			} else {
				for _, a := range w.Agents {
					if a.Status == store.AgentRunning {
						toSupervise = append(toSupervise, toStart{a.ID, w.ID})
					}
				}
			}
			if _, statErr := os.Stat(w.WorktreePath); statErr != nil {
				log.Printf("daemon: reconcile: worktree missing for workstream %s: %v", w.ID, statErr)
			}
		}
	}
	d.store.Unlock()

	if touched {
		if err := d.store.Persist(); err != nil {
			log.Printf("daemon: reconcile: persist failed: %v", err)
		}
	}

	for _, s := range toSupervise {
		d.startSupervisor(s.agentID, s.wsID)
	}
}

// WritePID writes the daemon's PID to its well-known file.
func (d *Daemon) WritePID() error {
	return os.WriteFile(filepath.Join(d.rootDir, "daemon", "vexd.pid"),
		[]byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600)
}

// RemovePID removes the daemon's PID file; called on clean shutdown.
func (d *Daemon) RemovePID() {
	os.Remove(filepath.Join(d.rootDir, "daemon", "vexd.pid"))
}
