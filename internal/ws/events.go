package ws

import "encoding/json"

// Inbound command types.
const (
	TypeLocationUpdate    = "LOCATION_UPDATE"
	TypeVisitStatusUpdate = "VISIT_STATUS_UPDATE"
	TypeMessageTyping     = "MESSAGE_TYPING"
)

// Outbound event types.
const (
	TypeAuthSuccess              = "AUTH_SUCCESS"
	TypeNurseLocationUpdate      = "NURSE_LOCATION_UPDATE"
	TypeVisitStatusChanged       = "VISIT_STATUS_CHANGED"
	TypeTypingIndicator          = "TYPING_INDICATOR"
	TypeNewMessage               = "NEW_MESSAGE"
	TypeMessageDeleted           = "MESSAGE_DELETED"
	TypeLocationUpdateSuccess    = "LOCATION_UPDATE_SUCCESS"
	TypeVisitStatusUpdateSuccess = "VISIT_STATUS_UPDATE_SUCCESS"
)

// Frame is the wire shape of every inbound command.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event is the wire shape of every outbound event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ErrorFrame is sent to the offending client only; the connection
// stays open.
type ErrorFrame struct {
	Error string `json:"error"`
}

type LocationUpdatePayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type VisitStatusUpdatePayload struct {
	VisitID string `json:"visitId"`
	Status  string `json:"status"`
}

type TypingPayload struct {
	RecipientID string `json:"recipientId"`
	VisitID     string `json:"visitId"`
	IsTyping    bool   `json:"isTyping"`
}

type NurseLocationData struct {
	VisitID   string  `json:"visitId"`
	NurseID   string  `json:"nurseId,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp string  `json:"timestamp"`
}

type VisitStatusData struct {
	VisitID   string `json:"visitId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type TypingIndicatorData struct {
	SenderID string `json:"senderId"`
	VisitID  string `json:"visitId"`
	IsTyping bool   `json:"isTyping"`
}
