package hub

import "github.com/weiawesome/wes-io-live/overlay-service/internal/domain"

// Message types exchanged with overlay clients.
const (
	MsgTypeSnapshot     = "snapshot"
	MsgTypeRequestState = "request_state"
	MsgTypePing         = "ping"
	MsgTypePong         = "pong"
	MsgTypeError        = "error"
)

// BaseMessage is the envelope every client message starts with.
type BaseMessage struct {
	Type string `json:"type"`
}

// SnapshotMessage carries a full state snapshot. Clients replace their copy
// and ignore versions older than the one they hold.
type SnapshotMessage struct {
	Type string          `json:"type"`
	Data domain.Snapshot `json:"data"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewSnapshotMessage(snap domain.Snapshot) SnapshotMessage {
	return SnapshotMessage{Type: MsgTypeSnapshot, Data: snap}
}

func NewErrorMessage(code, message string) ErrorMessage {
	return ErrorMessage{Type: MsgTypeError, Code: code, Message: message}
}
