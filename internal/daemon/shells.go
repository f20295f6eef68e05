package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/sandipndev/vex/internal/idgen"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/store"
)

func shellInfo(sh *store.Shell) proto.ShellInfo {
	return proto.ShellInfo{
		ID:           sh.ID,
		WorkstreamID: sh.WorkstreamID,
		Window:       sh.Window,
		Status:       sh.Status,
		StartedAt:    sh.StartedAt,
	}
}

// pendingShell is one entry of Daemon.pending: a shell that has been allocated a window by
// ShellSpawn but has not yet called back with ShellRegister, keyed by
// (session, window) since that is all the supervisor child knows about
// itself until it is told its shell id.
type pendingShell struct {
	wsID string
}

func pendingKey(session string, window int) string {
	return fmt.Sprintf("%s:%d", session, window)
}

// handleShellSpawn opens a new window in the workstream's session running
// the vex-shell-host binary. The host process itself registers back with
// ShellRegister once its PTY is up; this handler only reserves the
// window and an entry in d.pending so the registration can be
// matched to a workstream.
func (d *Daemon) handleShellSpawn(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.ShellSpawnRequest](payload)
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

	hostBin, err := shellHostPath()
	if err != nil {
		return "", nil, errInternal(err.Error())
	}

	window, err := d.tmux.NewWindow(session, "shell", worktreePath, []string{hostBin, "-socket", d.localSocketPath(), "-ws", req.WorkstreamID})
	if err != nil {
		return "", nil, errInternal(err.Error())
	}

	d.pendingMu.Lock()
	d.pending[pendingKey(session, window)] = pendingShell{wsID: req.WorkstreamID}
	d.pendingMu.Unlock()

	return proto.RespShellSpawned, proto.ShellSpawnResponse{Shell: proto.ShellInfo{
		WorkstreamID: req.WorkstreamID,
		Window:       window,
		Status:       store.ShellStarting,
		StartedAt:    time.Now(),
	}}, nil
}

// shellHostPath locates the vex-shell-host binary alongside the running
// daemon executable, falling back to PATH lookup.
func shellHostPath() (string, error) {
	self, err := os.Executable()
	if err == nil {
		candidate := joinExecDir(self, "vex-shell-host")
		if fi, statErr := os.Stat(candidate); statErr == nil && !fi.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath("vex-shell-host")
}

func joinExecDir(exe, name string) string {
	dir := exe[:len(exe)-len(base(exe))]
	return dir + name
}

func base(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func (d *Daemon) localSocketPath() string {
	return d.rootDir + "/daemon/vexd.sock"
}

// handleShellRegister is called by a freshly spawned shell-host supervisor
// once its PTY is ready, claiming the pending window reservation and
// allocating the shell's id.
func (d *Daemon) handleShellRegister(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.ShellRegisterRequest](payload)
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

	d.pendingMu.Lock()
	_, wasPending := d.pending[pendingKey(session, req.Window)]
	delete(d.pending, pendingKey(session, req.Window))
	d.pendingMu.Unlock()
	if !wasPending {
		return "", nil, errInternal("no pending shell reservation for this window")
	}

	shellID := shellIDFor()
	sh := &store.Shell{
		ID:           shellID,
		WorkstreamID: req.WorkstreamID,
		Window:       req.Window,
		Status:       store.ShellRunning,
		StartedAt:    time.Now(),
	}

	d.store.Lock()
	d.store.InsertShell(req.WorkstreamID, sh)
	d.store.Unlock()

	if err := d.store.Persist(); err != nil {
		return "", nil, errInternal(err.Error())
	}

	return proto.RespShellRegistered, proto.ShellRegisterResponse{ShellID: shellID}, nil
}

// shellIDFor allocates a new shell id with the opaque-id idiom (idgen):
// "shell_" plus a random 6-hex suffix, like other entity ids, even though
// it is generated at registration time rather than at spawn time.
func shellIDFor() string {
	return idgen.New("shell")
}

func (d *Daemon) handleShellList(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.ShellListRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	w, _, ok := d.store.FindWorkstream(req.WorkstreamID)
	if !ok {
		d.store.Unlock()
		return "", nil, errNotFound("workstream not found: " + req.WorkstreamID)
	}
	infos := make([]proto.ShellInfo, 0, len(w.Shells))
	for _, sh := range w.Shells {
		infos = append(infos, shellInfo(sh))
	}
	d.store.Unlock()

	return proto.RespShellList, proto.ShellListResponse{Shells: infos}, nil
}

func (d *Daemon) handleShellKill(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.ShellKillRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	sh, w, ok := d.store.FindShell(req.ShellID)
	if !ok {
		d.store.Unlock()
		return "", nil, errNotFound("shell not found: " + req.ShellID)
	}
	session := w.SessionName
	window := sh.Window
	wsID := w.ID
	d.store.Unlock()

	d.tmux.KillWindow(session, window)

	d.store.Lock()
	d.store.DeleteShell(wsID, req.ShellID)
	d.store.Unlock()

	if err := d.store.Persist(); err != nil {
		return "", nil, errInternal(err.Error())
	}
	return proto.RespOk, nil, nil
}

// ShellByID exposes a shell's session/window to the local listener's
// AttachShell handler, which bridges a client connection to the shell
// host's own connection outside of Dispatch (attach is a streaming
// command, not a single request/response).
func (d *Daemon) ShellByID(id string) (*store.Shell, *store.Workstream, bool) {
	d.store.Lock()
	defer d.store.Unlock()
	return d.store.FindShell(id)
}
