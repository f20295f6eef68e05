package proto

import "time"

// Transport identifies which listener accepted a connection. The dispatcher
// uses it to gate local-only commands; it is never decided by the listener
// itself, so adding a new transport cannot accidentally broaden authority.
type Transport int

const (
	TransportUnix Transport = iota
	TransportTCP
)

// Command discriminators. These are the canonical wire-level names every
// implementation must agree on; they double as the Envelope.Type value for
// request frames.
const (
	CmdStatus      = "Status"
	CmdWhoami      = "Whoami"
	CmdPairCreate  = "PairCreate"
	CmdPairList    = "PairList"
	CmdPairRevoke  = "PairRevoke"
	CmdPairRevokeAll = "PairRevokeAll"

	CmdRepoRegister   = "RepoRegister"
	CmdRepoList       = "RepoList"
	CmdRepoUnregister = "RepoUnregister"

	CmdWorkstreamCreate = "WorkstreamCreate"
	CmdWorkstreamList   = "WorkstreamList"
	CmdWorkstreamDelete = "WorkstreamDelete"

	CmdAgentSpawn        = "AgentSpawn"
	CmdAgentSpawnInPlace = "AgentSpawnInPlace"
	CmdAgentKill         = "AgentKill"
	CmdAgentList         = "AgentList"

	CmdShellSpawn    = "ShellSpawn"
	CmdShellRegister = "ShellRegister"
	CmdShellList     = "ShellList"
	CmdShellKill     = "ShellKill"
	CmdAttachShell   = "AttachShell"
)

// Response type discriminators.
const (
	RespOk               = "Ok"
	RespError            = "Error"
	RespPong             = "Pong"
	RespDaemonStatus     = "DaemonStatus"
	RespClientInfo       = "ClientInfo"
	RespPair             = "Pair"
	RespPairedClients    = "PairedClients"
	RespRevoked          = "Revoked"
	RespRepoRegistered   = "RepoRegistered"
	RespRepoList         = "RepoList"
	RespWorkstreamCreated = "WorkstreamCreated"
	RespWorkstreamList    = "WorkstreamList"
	RespAgentSpawned      = "AgentSpawned"
	RespAgentSpawnInPlace = "AgentSpawnInPlace"
	RespAgentList         = "AgentList"
	RespShellSpawned      = "ShellSpawned"
	RespShellRegistered   = "ShellRegistered"
	RespShellList         = "ShellList"
	RespAttached          = "Attached"
)

// ErrorKind is the closed set of wire-visible error categories. Internal
// carries a human-readable message whose content is not a stable API.
type ErrorKind string

const (
	ErrUnauthorized ErrorKind = "Unauthorized"
	ErrLocalOnly    ErrorKind = "LocalOnly"
	ErrNotFound     ErrorKind = "NotFound"
	ErrInternal     ErrorKind = "Internal"
)

// ErrorPayload is the body of every Error response.
type ErrorPayload struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message,omitempty"`
}

// AuthFrame is sent once, immediately after TLS completes, on the TCP
// transport only. The daemon replies with Pong or Error{Unauthorized} and
// closes on failure.
type AuthFrame struct {
	TokenID     string `json:"token_id"`
	TokenSecret string `json:"token_secret"`
}

// ─── Status / Whoami ──────────────────────────────────────────────────────

type DaemonStatus struct {
	UptimeSeconds int64  `json:"uptime_s"`
	Clients       int    `json:"clients"`
	Version       string `json:"version"`
}

type ClientInfo struct {
	TokenID string `json:"token_id,omitempty"`
	IsLocal bool   `json:"is_local"`
}

// ─── Pairing ───────────────────────────────────────────────────────────────

type PairCreateRequest struct {
	Label    string `json:"label,omitempty"`
	ExpireS  int64  `json:"expire_s,omitempty"`
}

type Pair struct {
	TokenID     string `json:"token_id"`
	TokenSecret string `json:"token_secret"`
}

type PairedClient struct {
	TokenID   string     `json:"token_id"`
	Label     string     `json:"label,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

type PairRevokeRequest struct {
	TokenID string `json:"token_id"`
}

type Revoked struct {
	Count int `json:"count"`
}

// ─── Repositories ──────────────────────────────────────────────────────────

type RepoRegisterRequest struct {
	Path string `json:"path"`
}

type RepoInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Path           string    `json:"path"`
	DefaultBranch  string    `json:"default_branch"`
	RegisteredAt   time.Time `json:"registered_at"`
	WorkstreamIDs  []string  `json:"workstream_ids"`
	PathWarning    string    `json:"path_warning,omitempty"`
}

type RepoUnregisterRequest struct {
	RepoID string `json:"repo_id"`
}

type RepoListRequest struct{}

type RepoListResponse struct {
	Repos []RepoInfo `json:"repos"`
}

// ─── Workstreams ───────────────────────────────────────────────────────────

type WorkstreamCreateRequest struct {
	RepoID      string `json:"repo_id"`
	Name        string `json:"name,omitempty"`
	Branch      string `json:"branch,omitempty"`
	FetchLatest bool   `json:"fetch_latest"`
}

type WorkstreamInfo struct {
	ID          string    `json:"id"`
	RepoID      string    `json:"repo_id"`
	Name        string    `json:"name"`
	Branch      string    `json:"branch"`
	WorktreePath string   `json:"worktree_path"`
	SessionName string    `json:"session_name"`
	Status      string    `json:"status"` // Running | Idle | Stopped
	CreatedAt   time.Time `json:"created_at"`
	AgentIDs    []string  `json:"agent_ids"`
	ShellIDs    []string  `json:"shell_ids"`
}

type WorkstreamListRequest struct {
	RepoID string `json:"repo_id,omitempty"`
}

type WorkstreamListResponse struct {
	Workstreams []WorkstreamInfo `json:"workstreams"`
}

type WorkstreamDeleteRequest struct {
	WorkstreamID string `json:"ws_id"`
}

// ─── Agents ────────────────────────────────────────────────────────────────

const (
	AgentStatusRunning = "Running"
	AgentStatusExited  = "Exited"
)

type AgentInfo struct {
	ID           string     `json:"id"`
	WorkstreamID string     `json:"ws_id"`
	Window       int        `json:"window"`
	Prompt       string     `json:"prompt"`
	Status       string     `json:"status"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	SpawnedAt    time.Time  `json:"spawned_at"`
	ExitedAt     *time.Time `json:"exited_at,omitempty"`
}

type AgentSpawnRequest struct {
	WorkstreamID string `json:"ws_id"`
	Prompt       string `json:"prompt"`
}

type AgentSpawnInPlaceRequest struct {
	WorkstreamID string `json:"ws_id"`
	Window       int    `json:"window"`
	Prompt       string `json:"prompt,omitempty"`
}

// AgentSpawnInPlaceResponse hands the client the exec command line to run
// itself, plus the agent record the daemon has already registered for it.
type AgentSpawnInPlaceResponse struct {
	Agent   AgentInfo `json:"agent"`
	Command []string  `json:"command"`
}

type AgentKillRequest struct {
	AgentID string `json:"agent_id"`
}

type AgentListRequest struct {
	WorkstreamID string `json:"ws_id"`
}

type AgentListResponse struct {
	Agents []AgentInfo `json:"agents"`
}

// ─── Shells ────────────────────────────────────────────────────────────────

const (
	ShellStatusStarting = "Starting"
	ShellStatusRunning  = "Running"
	ShellStatusExited   = "Exited"
)

type ShellInfo struct {
	ID           string    `json:"id"`
	WorkstreamID string    `json:"ws_id"`
	Window       int       `json:"window"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
}

type ShellSpawnRequest struct {
	WorkstreamID string `json:"ws_id"`
}

type ShellSpawnResponse struct {
	Shell ShellInfo `json:"shell"`
}

type ShellRegisterRequest struct {
	WorkstreamID string `json:"ws_id"`
	Window       int    `json:"window"`
}

type ShellRegisterResponse struct {
	ShellID string `json:"shell_id"`
}

type ShellListRequest struct {
	WorkstreamID string `json:"ws_id"`
}

type ShellListResponse struct {
	Shells []ShellInfo `json:"shells"`
}

type ShellKillRequest struct {
	ShellID string `json:"shell_id"`
}

type AttachShellRequest struct {
	ShellID string `json:"shell_id"`
}
