package daemon_test

import (
	"encoding/json"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sandipndev/vex/internal/daemon"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(t.TempDir())
	require.NoError(t, err)
	return d
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestStatusReportsVersionAndClients(t *testing.T) {
	d := newTestDaemon(t)
	respType, payload, err := d.Dispatch(proto.TransportUnix, "", proto.CmdStatus, nil)
	require.NoError(t, err)
	assert.Equal(t, proto.RespDaemonStatus, respType)
	status := payload.(proto.DaemonStatus)
	assert.GreaterOrEqual(t, status.UptimeSeconds, int64(0))
	assert.NotEmpty(t, status.Version)
}

func TestWhoamiReflectsTransport(t *testing.T) {
	d := newTestDaemon(t)
	_, payload, err := d.Dispatch(proto.TransportUnix, "", proto.CmdWhoami, nil)
	require.NoError(t, err)
	assert.True(t, payload.(proto.ClientInfo).IsLocal)

	_, payload, err = d.Dispatch(proto.TransportTCP, "tok_abcdef", proto.CmdWhoami, nil)
	require.NoError(t, err)
	info := payload.(proto.ClientInfo)
	assert.False(t, info.IsLocal)
	assert.Equal(t, "tok_abcdef", info.TokenID)
}

func TestLocalOnlyCommandsRejectedOverTCP(t *testing.T) {
	d := newTestDaemon(t)
	for _, cmd := range []string{proto.CmdPairCreate, proto.CmdPairList, proto.CmdPairRevoke, proto.CmdPairRevokeAll, proto.CmdRepoRegister} {
		_, _, err := d.Dispatch(proto.TransportTCP, "", cmd, raw(t, struct{}{}))
		require.Error(t, err)
		assert.Equal(t, proto.ErrLocalOnly, daemon.ToErrorPayload(err).Kind, "command %s", cmd)
	}
}

func TestPairCreateListRevokeRoundTrip(t *testing.T) {
	d := newTestDaemon(t)

	_, payload, err := d.Dispatch(proto.TransportUnix, "", proto.CmdPairCreate, raw(t, proto.PairCreateRequest{Label: "laptop"}))
	require.NoError(t, err)
	pair := payload.(proto.Pair)
	assert.NotEmpty(t, pair.TokenID)
	assert.Len(t, pair.TokenSecret, 64)

	_, payload, err = d.Dispatch(proto.TransportUnix, "", proto.CmdPairList, nil)
	require.NoError(t, err)
	clients := payload.([]proto.PairedClient)
	require.Len(t, clients, 1)
	assert.Equal(t, "laptop", clients[0].Label)
	assert.Equal(t, pair.TokenID, clients[0].TokenID)

	_, _, err = d.Dispatch(proto.TransportUnix, "", proto.CmdPairRevoke, raw(t, proto.PairRevokeRequest{TokenID: pair.TokenID}))
	require.NoError(t, err)

	_, payload, err = d.Dispatch(proto.TransportUnix, "", proto.CmdPairList, nil)
	require.NoError(t, err)
	assert.Empty(t, payload.([]proto.PairedClient))
}

func TestPairRevokeAllReturnsCount(t *testing.T) {
	d := newTestDaemon(t)
	for i := 0; i < 3; i++ {
		_, _, err := d.Dispatch(proto.TransportUnix, "", proto.CmdPairCreate, raw(t, proto.PairCreateRequest{}))
		require.NoError(t, err)
	}
	_, payload, err := d.Dispatch(proto.TransportUnix, "", proto.CmdPairRevokeAll, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, payload.(proto.Revoked).Count)
}

func TestWorkstreamCreateUnknownRepoIsNotFound(t *testing.T) {
	d := newTestDaemon(t)
	_, _, err := d.Dispatch(proto.TransportUnix, "", proto.CmdWorkstreamCreate,
		raw(t, proto.WorkstreamCreateRequest{RepoID: "repo_nope", Branch: "main"}))
	require.Error(t, err)
	assert.Equal(t, proto.ErrNotFound, daemon.ToErrorPayload(err).Kind)
}

func TestAgentSpawnUnknownWorkstreamIsNotFound(t *testing.T) {
	d := newTestDaemon(t)
	_, _, err := d.Dispatch(proto.TransportUnix, "", proto.CmdAgentSpawn,
		raw(t, proto.AgentSpawnRequest{WorkstreamID: "ws_nope", Prompt: "hello"}))
	require.Error(t, err)
	assert.Equal(t, proto.ErrNotFound, daemon.ToErrorPayload(err).Kind)
}

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, exec.Command("sh", "-c", "echo hi > "+filepath.Join(dir, "f.txt")).Run())
	run("add", "f.txt")
	run("commit", "-q", "-m", "init")
	return dir
}

func TestRepoRegisterListUnregister(t *testing.T) {
	d := newTestDaemon(t)
	repoPath := initGitRepo(t)

	_, payload, err := d.Dispatch(proto.TransportUnix, "", proto.CmdRepoRegister, raw(t, proto.RepoRegisterRequest{Path: repoPath}))
	require.NoError(t, err)
	info := payload.(proto.RepoInfo)
	assert.Equal(t, "main", info.DefaultBranch)
	assert.Empty(t, info.PathWarning)

	_, payload, err = d.Dispatch(proto.TransportUnix, "", proto.CmdRepoList, nil)
	require.NoError(t, err)
	repos := payload.(proto.RepoListResponse).Repos
	require.Len(t, repos, 1)
	assert.Equal(t, info.ID, repos[0].ID)

	_, _, err = d.Dispatch(proto.TransportUnix, "", proto.CmdRepoUnregister, raw(t, proto.RepoUnregisterRequest{RepoID: info.ID}))
	require.NoError(t, err)

	_, payload, err = d.Dispatch(proto.TransportUnix, "", proto.CmdRepoList, nil)
	require.NoError(t, err)
	assert.Empty(t, payload.(proto.RepoListResponse).Repos)
}

func TestRepoRegisterRejectsNonGitDirectory(t *testing.T) {
	d := newTestDaemon(t)
	_, _, err := d.Dispatch(proto.TransportUnix, "", proto.CmdRepoRegister, raw(t, proto.RepoRegisterRequest{Path: t.TempDir()}))
	require.Error(t, err)
	assert.Equal(t, proto.ErrInternal, daemon.ToErrorPayload(err).Kind)
}

func TestRepoRegisterRejectsDuplicatePath(t *testing.T) {
	d := newTestDaemon(t)
	repoPath := initGitRepo(t)

	_, _, err := d.Dispatch(proto.TransportUnix, "", proto.CmdRepoRegister, raw(t, proto.RepoRegisterRequest{Path: repoPath}))
	require.NoError(t, err)

	_, _, err = d.Dispatch(proto.TransportUnix, "", proto.CmdRepoRegister, raw(t, proto.RepoRegisterRequest{Path: repoPath}))
	require.Error(t, err)
	assert.Equal(t, proto.ErrInternal, daemon.ToErrorPayload(err).Kind)
}

func TestUnknownCommandIsInternalError(t *testing.T) {
	d := newTestDaemon(t)
	_, _, err := d.Dispatch(proto.TransportUnix, "", "NotARealCommand", nil)
	require.Error(t, err)
	assert.Equal(t, proto.ErrInternal, daemon.ToErrorPayload(err).Kind)
}
