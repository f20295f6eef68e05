package daemon

import (
	"encoding/json"
	"time"

	"github.com/sandipndev/vex/internal/proto"
)

func (d *Daemon) handlePairCreate(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.PairCreateRequest](payload)
	if err != nil {
		return "", nil, err
	}

	var expiresAt *time.Time
	if req.ExpireS > 0 {
		t := time.Now().Add(time.Duration(req.ExpireS) * time.Second)
		expiresAt = &t
	}

	id, secret, err := d.tokens.Issue(req.Label, expiresAt)
	if err != nil {
		return "", nil, errInternal(err.Error())
	}
	return proto.RespPair, proto.Pair{TokenID: id, TokenSecret: secret}, nil
}

func (d *Daemon) handlePairList() (string, any, error) {
	recs := d.tokens.List()
	out := make([]proto.PairedClient, len(recs))
	for i, r := range recs {
		out[i] = proto.PairedClient{
			TokenID:   r.TokenID,
			Label:     r.Label,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
			LastSeen:  r.LastSeen,
		}
	}
	return proto.RespPairedClients, out, nil
}

func (d *Daemon) handlePairRevoke(payload json.RawMessage) (string, any, error) {
	req, err := decode[proto.PairRevokeRequest](payload)
	if err != nil {
		return "", nil, err
	}
	if err := d.tokens.Revoke(req.TokenID); err != nil {
		return "", nil, errInternal(err.Error())
	}
	return proto.RespOk, nil, nil
}

func (d *Daemon) handlePairRevokeAll() (string, any, error) {
	n, err := d.tokens.RevokeAll()
	if err != nil {
		return "", nil, errInternal(err.Error())
	}
	return proto.RespRevoked, proto.Revoked{Count: n}, nil
}
