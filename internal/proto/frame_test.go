package proto_test

import (
	"bytes"
	"testing"

	"github.com/sandipndev/vex/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		typ  string
		v    any
	}{
		{"status request", proto.CmdStatus, nil},
		{"pair create", proto.CmdPairCreate, proto.PairCreateRequest{Label: "laptop"}},
		{"shell in", proto.ShellMsgIn, proto.ShellIn{Data: "aGVsbG8="}},
		{"shell resize", proto.ShellMsgResize, proto.ShellResize{Cols: 80, Rows: 24}},
		{"shell exited no code", proto.ShellMsgExited, proto.ShellExited{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, proto.WriteFrame(&buf, tc.typ, tc.v))

			env, err := proto.ReadEnvelope(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.typ, env.Type)
		})
	}
}

func TestReadEnvelopeMultipleFramesInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, proto.WriteFrame(&buf, proto.ShellMsgIn, proto.ShellIn{Data: "first"}))
	require.NoError(t, proto.WriteFrame(&buf, proto.ShellMsgIn, proto.ShellIn{Data: "second"}))

	env1, err := proto.ReadEnvelope(&buf)
	require.NoError(t, err)
	var in1 proto.ShellIn
	require.NoError(t, env1.Decode(&in1))
	assert.Equal(t, "first", in1.Data)

	env2, err := proto.ReadEnvelope(&buf)
	require.NoError(t, err)
	var in2 proto.ShellIn
	require.NoError(t, env2.Decode(&in2))
	assert.Equal(t, "second", in2.Data)
}

func TestMaxFrameSizeBoundary(t *testing.T) {
	// A frame whose encoded body exceeds MaxFrameSize is rejected by the
	// sender without writing anything.
	big := proto.ShellIn{Data: string(make([]byte, proto.MaxFrameSize))}

	var buf bytes.Buffer
	err := proto.WriteFrame(&buf, proto.ShellMsgIn, big)
	require.Error(t, err)
	assert.Zero(t, buf.Len(), "oversized frame must not write a partial header")
}

func TestReadEnvelopeShortReadIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, proto.WriteFrame(&buf, proto.CmdStatus, nil))
	truncated := buf.Bytes()[:buf.Len()-1]

	_, err := proto.ReadEnvelope(bytes.NewReader(truncated))
	require.Error(t, err)
}
