package tlsidentity

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// PinStore is the client-side trust-on-first-use ledger: one fingerprint
// per remote target (host:port), pinned the first time it is seen and
// checked on every connection after that.
type PinStore struct {
	mu   sync.Mutex
	path string
	pins map[string]string
}

// OpenPinStore loads path if present, or starts with no pins recorded.
func OpenPinStore(path string) (*PinStore, error) {
	p := &PinStore{path: path, pins: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("tlsidentity: read pin store: %w", err)
	}
	if err := json.Unmarshal(data, &p.pins); err != nil {
		return nil, fmt.Errorf("tlsidentity: parse pin store: %w", err)
	}
	return p, nil
}

func (p *PinStore) persist() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p.pins, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o600)
}

// ErrFingerprintMismatch is returned (wrapped with the target and both
// fingerprints) when a host's presented certificate no longer matches the
// pin recorded on first use — a possible impersonation or a daemon that
// was reinstalled, either way requiring explicit user action, never a
// silent bypass.
type ErrFingerprintMismatch struct {
	Target   string
	Pinned   string
	Observed string
}

func (e *ErrFingerprintMismatch) Error() string {
	return fmt.Sprintf("tlsidentity: certificate for %s changed: pinned %s, saw %s (remove the stale pin to trust the new certificate)", e.Target, e.Pinned, e.Observed)
}

// ClientConfig returns a tls.Config whose VerifyConnection hook implements
// TOFU for target: the first certificate seen for target is pinned and
// accepted; every later connection must present the same fingerprint.
// Go's normal chain verification is disabled (InsecureSkipVerify plus a
// custom VerifyConnection) because there is no CA here — identity is
// established by the pin, not by a certificate authority.
func (p *PinStore) ClientConfig(target string) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // verified by VerifyConnection below
		VerifyConnection: func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return fmt.Errorf("tlsidentity: no certificate presented by %s", target)
			}
			return p.verify(target, cs.PeerCertificates[0])
		},
	}
}

func (p *PinStore) verify(target string, cert *x509.Certificate) error {
	observed := Fingerprint(cert)

	p.mu.Lock()
	defer p.mu.Unlock()

	pinned, known := p.pins[target]
	if !known {
		p.pins[target] = observed
		return p.persist()
	}
	if pinned != observed {
		return &ErrFingerprintMismatch{Target: target, Pinned: pinned, Observed: observed}
	}
	return nil
}

// Forget removes any pin recorded for target, letting a future connection
// re-pin from scratch — the deliberate escape hatch for the mismatch case.
func (p *PinStore) Forget(target string) error {
	p.mu.Lock()
	delete(p.pins, target)
	p.mu.Unlock()
	return p.persist()
}
