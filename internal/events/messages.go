package events

import (
	"encoding/json"
	"time"

	"saveup/internal/core"
	"saveup/internal/tracker"
)

// ContributionPayload is the contribution that triggered a
// contribution_added message.
type ContributionPayload struct {
	Amount float64   `json:"amount"`
	Method string    `json:"method"`
	Date   time.Time `json:"date"`
}

// StateChangedMessage is published after every tracker mutation. Amounts are
// in rupees.
type StateChangedMessage struct {
	Kind          string               `json:"kind"`
	TargetAmount  float64              `json:"target_amount"`
	SavedAmount   float64              `json:"saved_amount"`
	Deadline      string               `json:"deadline,omitempty"`
	Contributions int                  `json:"contributions"`
	Contribution  *ContributionPayload `json:"contribution,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewStateChangedMessage builds the message for ev.
func NewStateChangedMessage(ev tracker.Event) *StateChangedMessage {
	msg := &StateChangedMessage{
		Kind:          string(ev.Kind),
		TargetAmount:  ev.Goal.TargetAmount.Rupees(),
		SavedAmount:   ev.Goal.SavedAmount.Rupees(),
		Deadline:      ev.Goal.Deadline.String(),
		Contributions: len(ev.Goal.Contributions),
		Timestamp:     ev.At,
	}
	if ev.Contribution != nil {
		msg.Contribution = payloadOf(*ev.Contribution)
	}
	return msg
}

func payloadOf(c core.Contribution) *ContributionPayload {
	return &ContributionPayload{Amount: c.Amount.Rupees(), Method: string(c.Method), Date: c.Date}
}

// ToJSON converts the message to JSON bytes
func (m *StateChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StateChangedMessageFromJSON decodes a message body.
func StateChangedMessageFromJSON(data []byte) (*StateChangedMessage, error) {
	var msg StateChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
