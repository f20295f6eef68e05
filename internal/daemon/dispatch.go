package daemon

import (
	"encoding/json"
	"time"

	"github.com/sandipndev/vex/internal/proto"
)

// dispatchErr carries a wire-visible ErrorKind out of a handler, the
// daemon-side analogue of grove's proto.Response{OK:false,...}
// construction, generalized so Dispatch can stay a single function
// returning (type, payload, error) instead of writing to a connection
// directly — the listener, not the dispatcher, owns framing.
type dispatchErr struct {
	kind proto.ErrorKind
	msg  string
}

func (e *dispatchErr) Error() string { return e.msg }

func errNotFound(msg string) error     { return &dispatchErr{proto.ErrNotFound, msg} }
func errLocalOnly() error              { return &dispatchErr{proto.ErrLocalOnly, "this command is local-transport only"} }
func errUnauthorized(msg string) error { return &dispatchErr{proto.ErrUnauthorized, msg} }
func errInternal(msg string) error     { return &dispatchErr{proto.ErrInternal, msg} }

// ToErrorPayload converts any error Dispatch returned into the wire
// ErrorPayload, defaulting unrecognized errors to Internal.
func ToErrorPayload(err error) proto.ErrorPayload {
	if de, ok := err.(*dispatchErr); ok {
		return proto.ErrorPayload{Kind: de.kind, Message: de.msg}
	}
	return proto.ErrorPayload{Kind: proto.ErrInternal, Message: err.Error()}
}

var localOnlyCommands = map[string]bool{
	proto.CmdPairCreate:    true,
	proto.CmdPairList:      true,
	proto.CmdPairRevoke:    true,
	proto.CmdPairRevokeAll: true,
	proto.CmdRepoRegister:  true,
}

// Dispatch is the single entry point every transport funnels commands
// through, carrying (transport, tokenID) explicitly alongside the
// command: local-only gating lives here, not in the listeners, so a new
// transport can never accidentally broaden authority.
func (d *Daemon) Dispatch(transport proto.Transport, tokenID string, cmdType string, payload json.RawMessage) (string, any, error) {
	if transport == proto.TransportTCP && localOnlyCommands[cmdType] {
		return "", nil, errLocalOnly()
	}

	switch cmdType {
	case proto.CmdStatus:
		return proto.RespDaemonStatus, proto.DaemonStatus{
			UptimeSeconds: int64(time.Since(d.startedAt).Seconds()),
			Clients:       d.clientCount(),
			Version:       Version,
		}, nil

	case proto.CmdWhoami:
		return proto.RespClientInfo, proto.ClientInfo{
			TokenID: tokenID,
			IsLocal: transport == proto.TransportUnix,
		}, nil

	case proto.CmdPairCreate:
		return d.handlePairCreate(payload)
	case proto.CmdPairList:
		return d.handlePairList()
	case proto.CmdPairRevoke:
		return d.handlePairRevoke(payload)
	case proto.CmdPairRevokeAll:
		return d.handlePairRevokeAll()

	case proto.CmdRepoRegister:
		return d.handleRepoRegister(payload)
	case proto.CmdRepoList:
		return d.handleRepoList()
	case proto.CmdRepoUnregister:
		return d.handleRepoUnregister(payload)

	case proto.CmdWorkstreamCreate:
		return d.handleWorkstreamCreate(payload)
	case proto.CmdWorkstreamList:
		return d.handleWorkstreamList(payload)
	case proto.CmdWorkstreamDelete:
		return d.handleWorkstreamDelete(payload)

	case proto.CmdAgentSpawn:
		return d.handleAgentSpawn(payload)
	case proto.CmdAgentSpawnInPlace:
		return d.handleAgentSpawnInPlace(payload)
	case proto.CmdAgentKill:
		return d.handleAgentKill(payload)
	case proto.CmdAgentList:
		return d.handleAgentList(payload)

	case proto.CmdShellSpawn:
		return d.handleShellSpawn(payload)
	case proto.CmdShellRegister:
		return d.handleShellRegister(payload)
	case proto.CmdShellList:
		return d.handleShellList(payload)
	case proto.CmdShellKill:
		return d.handleShellKill(payload)

	default:
		return "", nil, errInternal("unknown command: " + cmdType)
	}
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v); err != nil {
			var zero T
			return zero, errInternal("bad payload: " + err.Error())
		}
	}
	return v, nil
}
