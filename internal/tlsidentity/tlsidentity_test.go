package tlsidentity_test

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"
	"testing"

	"github.com/sandipndev/vex/internal/tlsidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeConnState(t *testing.T, id *tlsidentity.Identity) tls.ConnectionState {
	t.Helper()
	leaf := id.Cert.Leaf
	if leaf == nil {
		var err error
		leaf, err = x509.ParseCertificate(id.Cert.Certificate[0])
		require.NoError(t, err)
	}
	return tls.ConnectionState{PeerCertificates: []*x509.Certificate{leaf}}
}

func TestLoadGeneratesThenReloadsSameIdentity(t *testing.T) {
	dir := t.TempDir()

	id1, err := tlsidentity.Load(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, id1.Fingerprint)

	id2, err := tlsidentity.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, id1.Fingerprint, id2.Fingerprint)
}

func TestPinStorePinsOnFirstUse(t *testing.T) {
	dir := t.TempDir()
	id, err := tlsidentity.Load(dir)
	require.NoError(t, err)

	p, err := tlsidentity.OpenPinStore(filepath.Join(dir, "pins.json"))
	require.NoError(t, err)

	cfg := p.ClientConfig("example:443")
	require.NoError(t, cfg.VerifyConnection(fakeConnState(t, id)))

	// Second connection with the same cert must succeed silently.
	require.NoError(t, cfg.VerifyConnection(fakeConnState(t, id)))
}

func TestPinStoreRejectsChangedFingerprint(t *testing.T) {
	dir := t.TempDir()
	id1, err := tlsidentity.Load(dir)
	require.NoError(t, err)

	otherDir := t.TempDir()
	id2, err := tlsidentity.Load(otherDir)
	require.NoError(t, err)

	p, err := tlsidentity.OpenPinStore(filepath.Join(dir, "pins.json"))
	require.NoError(t, err)
	cfg := p.ClientConfig("example:443")

	require.NoError(t, cfg.VerifyConnection(fakeConnState(t, id1)))

	err = cfg.VerifyConnection(fakeConnState(t, id2))
	require.Error(t, err)
	var mismatch *tlsidentity.ErrFingerprintMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestForgetAllowsRePinning(t *testing.T) {
	dir := t.TempDir()
	id1, err := tlsidentity.Load(dir)
	require.NoError(t, err)

	otherDir := t.TempDir()
	id2, err := tlsidentity.Load(otherDir)
	require.NoError(t, err)

	p, err := tlsidentity.OpenPinStore(filepath.Join(dir, "pins.json"))
	require.NoError(t, err)
	cfg := p.ClientConfig("example:443")

	require.NoError(t, cfg.VerifyConnection(fakeConnState(t, id1)))
	require.NoError(t, p.Forget("example:443"))
	require.NoError(t, cfg.VerifyConnection(fakeConnState(t, id2)))
}
