package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ChangeMessage announces one committed write. It carries no record data;
// consumers read the current state from the database.
type ChangeMessage struct {
	MessageID  string    `json:"message_id"`
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	RecordID   int64     `json:"record_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewChangeMessage(collection, op string, id int64) *ChangeMessage {
	return &ChangeMessage{
		MessageID:  uuid.NewString(),
		Collection: collection,
		Op:         op,
		RecordID:   id,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and checks a message body
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Collection == "" || msg.Op == "" {
		return nil, errors.New("change message without collection or op")
	}
	return &msg, nil
}
