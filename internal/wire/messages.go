// Package wire defines the binary session-control protocol simhost speaks
// over TCP, adapted from saiputravu-Exchange's internal/net/messages.go:
// the same BigEndian fixed-header-plus-variable-tail framing, the same
// "TypeOf uint16, then dispatch" parse shape, carried over from an order
// placement/cancellation vocabulary to a session start/cancel/query one.
// Session configuration is itself a nested structure (roster, news
// schedule, storyline) that saiputravu-Exchange's protocol never had to
// carry, so instead of hand-packing every field StartSession embeds a
// length-prefixed JSON body the way that protocol embeds a length-prefixed
// username tail.
package wire

import (
	"encoding/binary"
	"errors"
	"math"

	goccyjson "github.com/goccy/go-json"

	"marketsim/internal/config"
	"marketsim/internal/model"
)

var (
	ErrInvalidMessageType = errors.New("wire: invalid message type")
	ErrMessageTooShort    = errors.New("wire: message too short")
)

// MessageType identifies a client-to-host control message.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	StartSession
	CancelSession
	QuerySession
)

// ReportMessageType identifies a host-to-client response message.
type ReportMessageType uint8

const (
	SessionReport ReportMessageType = iota
	ErrorReport
)

// Message is implemented by every parsed client-to-host message.
type Message interface {
	GetType() MessageType
}

// BaseMessage carries the 2-byte type header every message starts with.
type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

const baseMessageHeaderLen = 2

// ParseMessage reads the type header off msg and dispatches to the matching
// parser, mirroring messages.go's parseMessage.
func ParseMessage(msg []byte) (Message, error) {
	if len(msg) < baseMessageHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typeOf {
	case StartSession:
		return parseStartSession(body)
	case CancelSession:
		return parseCancelSession(body)
	case QuerySession:
		return parseQuerySession(body)
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

// StartSessionMessage requests a new session be started from cfg.
type StartSessionMessage struct {
	BaseMessage
	Config config.Config
}

const startSessionHeaderLen = 4 // configLen uint32

func (m *StartSessionMessage) Serialize() ([]byte, error) {
	body, err := goccyjson.Marshal(m.Config)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, baseMessageHeaderLen+startSessionHeaderLen+len(body))
	binary.BigEndian.PutUint16(buf[0:2], uint16(StartSession))
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(body)))
	copy(buf[6:], body)
	return buf, nil
}

func parseStartSession(body []byte) (*StartSessionMessage, error) {
	if len(body) < startSessionHeaderLen {
		return nil, ErrMessageTooShort
	}
	configLen := binary.BigEndian.Uint32(body[0:4])
	if len(body) < startSessionHeaderLen+int(configLen) {
		return nil, ErrMessageTooShort
	}
	var cfg config.Config
	if err := goccyjson.Unmarshal(body[startSessionHeaderLen:startSessionHeaderLen+int(configLen)], &cfg); err != nil {
		return nil, err
	}
	return &StartSessionMessage{BaseMessage: BaseMessage{TypeOf: StartSession}, Config: cfg}, nil
}

// sessionIDMessage is the shared shape of CancelSession and QuerySession:
// type header plus a length-prefixed session id.
type sessionIDMessage struct {
	SessionID string
}

const sessionIDHeaderLen = 2 // idLen uint16

func serializeSessionIDMessage(t MessageType, sessionID string) []byte {
	buf := make([]byte, baseMessageHeaderLen+sessionIDHeaderLen+len(sessionID))
	binary.BigEndian.PutUint16(buf[0:2], uint16(t))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(sessionID)))
	copy(buf[4:], sessionID)
	return buf
}

func parseSessionIDMessage(body []byte) (sessionIDMessage, error) {
	if len(body) < sessionIDHeaderLen {
		return sessionIDMessage{}, ErrMessageTooShort
	}
	idLen := binary.BigEndian.Uint16(body[0:2])
	if len(body) < sessionIDHeaderLen+int(idLen) {
		return sessionIDMessage{}, ErrMessageTooShort
	}
	return sessionIDMessage{SessionID: string(body[sessionIDHeaderLen : sessionIDHeaderLen+int(idLen)])}, nil
}

// CancelSessionMessage requests the session named by SessionID stop.
type CancelSessionMessage struct {
	BaseMessage
	SessionID string
}

func (m *CancelSessionMessage) Serialize() []byte {
	return serializeSessionIDMessage(CancelSession, m.SessionID)
}

func parseCancelSession(body []byte) (*CancelSessionMessage, error) {
	m, err := parseSessionIDMessage(body)
	if err != nil {
		return nil, err
	}
	return &CancelSessionMessage{BaseMessage: BaseMessage{TypeOf: CancelSession}, SessionID: m.SessionID}, nil
}

// QuerySessionMessage requests the current Session record for SessionID.
type QuerySessionMessage struct {
	BaseMessage
	SessionID string
}

func (m *QuerySessionMessage) Serialize() []byte {
	return serializeSessionIDMessage(QuerySession, m.SessionID)
}

func parseQuerySession(body []byte) (*QuerySessionMessage, error) {
	m, err := parseSessionIDMessage(body)
	if err != nil {
		return nil, err
	}
	return &QuerySessionMessage{BaseMessage: BaseMessage{TypeOf: QuerySession}, SessionID: m.SessionID}, nil
}

// Report is the host's reply to StartSession/CancelSession/QuerySession:
// either a session snapshot or an error, framed as a fixed numeric header
// plus a variable sessionID/error tail (reportFixedHeaderLen mirrors
// saiputravu-Exchange's Report.Serialize layout).
type Report struct {
	MessageType ReportMessageType
	Status      uint8 // model.SessionStatus encoded: 0 pending,1 running,2 completed,3 error
	EventCount  uint64
	TradeCount  uint64
	FinalPrice  float64
	SessionID   string
	Err         string
}

const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 2 + 4 // type,status,eventCount,tradeCount,finalPrice,idLen,errLen

func (r *Report) Serialize() []byte {
	idBytes := []byte(r.SessionID)
	errBytes := []byte(r.Err)
	buf := make([]byte, reportFixedHeaderLen+len(idBytes)+len(errBytes))
	buf[0] = byte(r.MessageType)
	buf[1] = r.Status
	binary.BigEndian.PutUint64(buf[2:10], r.EventCount)
	binary.BigEndian.PutUint64(buf[10:18], r.TradeCount)
	binary.BigEndian.PutUint64(buf[18:26], math.Float64bits(r.FinalPrice))
	binary.BigEndian.PutUint16(buf[26:28], uint16(len(idBytes)))
	binary.BigEndian.PutUint32(buf[28:32], uint32(len(errBytes)))
	copy(buf[32:32+len(idBytes)], idBytes)
	copy(buf[32+len(idBytes):], errBytes)
	return buf
}

// ParseReport decodes a Report produced by Serialize.
func ParseReport(buf []byte) (Report, error) {
	if len(buf) < reportFixedHeaderLen {
		return Report{}, ErrMessageTooShort
	}
	var r Report
	r.MessageType = ReportMessageType(buf[0])
	r.Status = buf[1]
	r.EventCount = binary.BigEndian.Uint64(buf[2:10])
	r.TradeCount = binary.BigEndian.Uint64(buf[10:18])
	r.FinalPrice = math.Float64frombits(binary.BigEndian.Uint64(buf[18:26]))
	idLen := binary.BigEndian.Uint16(buf[26:28])
	errLen := binary.BigEndian.Uint32(buf[28:32])
	if len(buf) < reportFixedHeaderLen+int(idLen)+int(errLen) {
		return Report{}, ErrMessageTooShort
	}
	r.SessionID = string(buf[reportFixedHeaderLen : reportFixedHeaderLen+int(idLen)])
	r.Err = string(buf[reportFixedHeaderLen+int(idLen) : reportFixedHeaderLen+int(idLen)+int(errLen)])
	return r, nil
}

// StatusCode encodes a model.SessionStatus for the wire.
func StatusCode(s model.SessionStatus) uint8 {
	switch s {
	case model.SessionPending:
		return 0
	case model.SessionRunning:
		return 1
	case model.SessionCompleted:
		return 2
	case model.SessionError:
		return 3
	default:
		return 3
	}
}

// StatusFromCode decodes a wire status byte back into a model.SessionStatus.
func StatusFromCode(code uint8) model.SessionStatus {
	switch code {
	case 0:
		return model.SessionPending
	case 1:
		return model.SessionRunning
	case 2:
		return model.SessionCompleted
	default:
		return model.SessionError
	}
}

// ReportFromSession builds a SessionReport Report from a Session record.
func ReportFromSession(sess model.Session) Report {
	finalPrice, _ := sess.FinalPrice.Float64()
	return Report{
		MessageType: SessionReport,
		Status:      StatusCode(sess.Status),
		EventCount:  sess.EventCount,
		TradeCount:  sess.TradeCount,
		FinalPrice:  finalPrice,
		SessionID:   sess.SessionID,
		Err:         sess.Error,
	}
}
