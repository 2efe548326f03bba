package lighting

import "time"

// Command methods understood by shelf controller firmware.
const (
	MethodTurnOnLight  = "TurnOnLight"
	MethodTurnOffLight = "TurnOffLight"
)

// StatusOK is the only acknowledgement status that confirms a command.
const StatusOK = 200

// CommandMessage is sent from the core to a device.
// Topic: inventory/device/{externalID}/command
type CommandMessage struct {
	// RequestID correlates the command with its acknowledgement.
	RequestID string `json:"request_id"`

	// Method is TurnOnLight or TurnOffLight.
	Method string `json:"method"`

	Payload CommandPayload `json:"payload"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`
}

// CommandPayload carries the target shelf.
type CommandPayload struct {
	ShelfPosition int `json:"shelf_position"`
}

// AckMessage is sent by a device once it has executed (or refused) a command.
// Topic: inventory/device/{externalID}/ack
type AckMessage struct {
	RequestID string `json:"request_id"`

	// Status follows HTTP semantics; anything other than 200 is a failure.
	Status int `json:"status"`

	// Message is optional diagnostic text from the firmware.
	Message string `json:"message,omitempty"`
}

func methodFor(turnOn bool) string {
	if turnOn {
		return MethodTurnOnLight
	}
	return MethodTurnOffLight
}
