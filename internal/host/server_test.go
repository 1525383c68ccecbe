package host

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/internal/config"
	"marketsim/internal/store"
	"marketsim/internal/wire"
)

func testAgentSpec() config.AgentSpec {
	return config.AgentSpec{ID: "noise-1", Archetype: "noise", Params: map[string]float64{"orderProbability": 0.5}}
}

func startTestServer(t *testing.T) (addr string, stores *store.Memory) {
	t.Helper()
	stores = store.NewMemory()
	h := New(Options{MaxConcurrent: 2, TapeDir: t.TempDir(), Stores: stores})
	srv := NewServer("127.0.0.1:0", h)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv.listener = listener
	addr = listener.Addr().String()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go srv.handleConnection(conn)
		}
	}()
	t.Cleanup(func() {
		listener.Close()
		h.Shutdown()
	})
	return addr, stores
}

func sendMessage(t *testing.T, addr string, payload []byte) wire.Report {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(payload)))
	_, err = conn.Write(lenBuf)
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)

	respLenBuf := make([]byte, 4)
	_, err = io.ReadFull(conn, respLenBuf)
	require.NoError(t, err)
	size := binary.BigEndian.Uint32(respLenBuf)
	body := make([]byte, size)
	_, err = io.ReadFull(conn, body)
	require.NoError(t, err)

	report, err := wire.ParseReport(body)
	require.NoError(t, err)
	return report
}

func TestServerStartThenQuerySession(t *testing.T) {
	addr, _ := startTestServer(t)

	cfg := config.Config{
		SessionID: "wire-1",
		Session: config.SessionTuning{
			Seed: 1, DurationMs: 200, TickSize: 0.01, InitialPrice: 100,
			TickIntervalMs: 50, SnapshotInterval: 100, OHLCVResolution: 100, SnapshotDepth: 5,
		},
		Agents: []config.AgentSpec{testAgentSpec()},
	}
	startMsg := &wire.StartSessionMessage{Config: cfg}
	buf, err := startMsg.Serialize()
	require.NoError(t, err)

	report := sendMessage(t, addr, buf)
	assert.Equal(t, wire.SessionReport, report.MessageType)
	assert.Equal(t, "wire-1", report.SessionID)

	require.Eventually(t, func() bool {
		q := &wire.QuerySessionMessage{SessionID: "wire-1"}
		r := sendMessage(t, addr, q.Serialize())
		return r.MessageType == wire.SessionReport && wire.StatusFromCode(r.Status).Terminal()
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServerQueryUnknownSessionReturnsError(t *testing.T) {
	addr, _ := startTestServer(t)

	q := &wire.QuerySessionMessage{SessionID: "missing"}
	report := sendMessage(t, addr, q.Serialize())
	assert.Equal(t, wire.ErrorReport, report.MessageType)
}

func TestServerRejectsInvalidConfig(t *testing.T) {
	addr, _ := startTestServer(t)

	cfg := config.Config{SessionID: "bad-cfg"} // no agents, no tick size
	startMsg := &wire.StartSessionMessage{Config: cfg}
	buf, err := startMsg.Serialize()
	require.NoError(t, err)

	report := sendMessage(t, addr, buf)
	assert.Equal(t, wire.ErrorReport, report.MessageType)
}
