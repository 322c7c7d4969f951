package amqp

import (
	"encoding/json"
	"time"
)

// JournalSyncMessage asks the worker to export one journal entry. It carries
// only the ID; the worker loads the entry from the journal database.
type JournalSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewJournalSyncMessage(id int64) *JournalSyncMessage {
	return &JournalSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *JournalSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func JournalSyncMessageFromJSON(data []byte) (*JournalSyncMessage, error) {
	var msg JournalSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
