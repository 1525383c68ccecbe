package host

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog/log"

	"marketsim/internal/model"
	"marketsim/internal/wire"
)

const maxMessageSize = 16 * 1024 * 1024

// Server accepts TCP connections speaking internal/wire's protocol, adapted
// from internal/net/server.go's accept loop: each connection is handled by
// its own goroutine rather than routed through a net.Conn worker pool,
// since a session-control request is one message in, one Report out, not a
// held session the way saiputravu-Exchange's ClientSession model assumed.
// A 4-byte big-endian length prefix is added ahead of every message so a
// StartSession's JSON config body (unbounded, unlike that protocol's
// fixed-width order fields) can be read reliably off the stream.
type Server struct {
	address  string
	host     *Host
	listener net.Listener
}

// NewServer constructs a Server bound to address (host:port) and backed by
// host for session lifecycle.
func NewServer(address string, h *Host) *Server {
	return &Server{address: address, host: h}
}

// Run listens and accepts connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("host: listen %s: %w", s.address, err)
	}
	s.listener = listener
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Info().Str("address", s.address).Msg("simhost listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Error().Err(err).Msg("accept failed")
				continue
			}
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		if err != io.EOF {
			log.Error().Err(err).Msg("reading message length failed")
		}
		return
	}
	size := binary.BigEndian.Uint32(lenBuf)
	if size == 0 || size > maxMessageSize {
		log.Error().Uint32("size", size).Msg("rejecting oversized or empty message")
		return
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		log.Error().Err(err).Msg("reading message body failed")
		return
	}

	report := s.dispatch(body)
	writeFramed(conn, report.Serialize())
}

func (s *Server) dispatch(body []byte) wire.Report {
	msg, err := wire.ParseMessage(body)
	if err != nil {
		return errorReport(err)
	}

	switch m := msg.(type) {
	case *wire.StartSessionMessage:
		cfg := m.Config.ToSessionConfig()
		if verr := m.Config.Validate(); verr != nil {
			return errorReport(verr)
		}
		sessionID, err := s.host.StartSession(cfg)
		if err != nil {
			return errorReport(err)
		}
		return wire.ReportFromSession(model.Session{SessionID: sessionID, Status: model.SessionRunning})

	case *wire.CancelSessionMessage:
		if err := s.host.CancelSession(m.SessionID); err != nil {
			return errorReport(err)
		}
		sess, _, _ := s.host.QuerySession(m.SessionID)
		return wire.ReportFromSession(sess)

	case *wire.QuerySessionMessage:
		sess, ok, err := s.host.QuerySession(m.SessionID)
		if err != nil {
			return errorReport(err)
		}
		if !ok {
			return errorReport(ErrSessionNotFound)
		}
		return wire.ReportFromSession(sess)

	default:
		return wire.Report{MessageType: wire.ErrorReport, Err: "host: unsupported message type"}
	}
}

func errorReport(err error) wire.Report {
	return wire.Report{MessageType: wire.ErrorReport, Err: err.Error()}
}

func writeFramed(conn net.Conn, payload []byte) {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(payload)))
	if _, err := conn.Write(lenBuf); err != nil {
		log.Error().Err(err).Msg("writing response length failed")
		return
	}
	if _, err := conn.Write(payload); err != nil {
		log.Error().Err(err).Msg("writing response body failed")
	}
}
