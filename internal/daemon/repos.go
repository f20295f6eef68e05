package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sandipndev/vex/internal/idgen"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/store"
)

func repoInfo(r *store.Repository) proto.RepoInfo {
	ids := make([]string, 0, len(r.Workstreams))
	for id := range r.Workstreams {
		ids = append(ids, id)
	}
	info := proto.RepoInfo{
		ID:            r.ID,
		Name:          r.Name,
		Path:          r.Path,
		DefaultBranch: r.DefaultBranch,
		RegisteredAt:  r.RegisteredAt,
		WorkstreamIDs: ids,
	}
	if fi, err := os.Stat(r.Path); err != nil || !fi.IsDir() {
		info.PathWarning = fmt.Sprintf("registered path %s is no longer a directory", r.Path)
	}
	return info
}

func (d *Daemon) handleRepoRegister(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.RepoRegisterRequest](payload)
	if err != nil {
		return "", nil, err
	}
	path, err := filepath.Abs(req.Path)
	if err != nil {
		return "", nil, errInternal(err.Error())
	}
	if fi, statErr := os.Stat(filepath.Join(path, ".git")); statErr != nil || !fi.IsDir() {
		return "", nil, errInternal(fmt.Sprintf("%s is not a git working copy", path))
	}

	branch, err := d.git.DefaultBranch(path)
	if err != nil {
		return "", nil, errInternal(err.Error())
	}

	d.store.Lock()
	if _, exists := d.store.RepoByPath(path); exists {
		d.store.Unlock()
		return "", nil, errInternal(fmt.Sprintf("repository already registered: %s", path))
	}
	r := &store.Repository{
		ID:            idgen.New("repo"),
		Name:          filepath.Base(path),
		Path:          path,
		DefaultBranch: branch,
		RegisteredAt:  time.Now(),
	}
	d.store.InsertRepo(r)
	d.store.Unlock()

	if err := d.store.Persist(); err != nil {
		return "", nil, errInternal(err.Error())
	}

	return proto.RespRepoRegistered, repoInfo(r), nil
}

func (d *Daemon) handleRepoList() (string, any, error) {
	d.store.Lock()
	repos := d.store.ListRepos()
	infos := make([]proto.RepoInfo, len(repos))
	for i, r := range repos {
		infos[i] = repoInfo(r)
	}
	d.store.Unlock()
	return proto.RespRepoList, proto.RepoListResponse{Repos: infos}, nil
}

func (d *Daemon) handleRepoUnregister(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.RepoUnregisterRequest](payload)
	if err != nil {
		return "", nil, err
	}

	d.store.Lock()
	r, ok := d.store.FindRepo(req.RepoID)
	if !ok {
		d.store.Unlock()
		return "", nil, errNotFound("repository not found: " + req.RepoID)
	}
	var wsIDs []string
	for id := range r.Workstreams {
		wsIDs = append(wsIDs, id)
	}
	d.store.Unlock()

	// Cascade: tear down every child workstream the same way WorkstreamDelete
	// would, best-effort, before removing the repo itself.
	for _, wsID := range wsIDs {
		d.destroyWorkstream(req.RepoID, wsID)
	}

	d.store.Lock()
	d.store.DeleteRepo(req.RepoID)
	d.store.Unlock()

	if err := d.store.Persist(); err != nil {
		return "", nil, errInternal(err.Error())
	}
	return proto.RespOk, nil, nil
}
