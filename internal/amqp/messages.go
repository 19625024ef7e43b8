package amqp

import (
	"encoding/json"
	"time"

	"raport/internal/core"
)

// ExpenseSyncMessage asks the worker to mirror one stored expense to the
// spreadsheet. The worker loads the expense itself.
type ExpenseSyncMessage struct {
	ID        int64         `json:"id"`
	Month     core.MonthKey `json:"month"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewExpenseSyncMessage(id int64, month core.MonthKey) *ExpenseSyncMessage {
	return &ExpenseSyncMessage{
		ID:        id,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseSyncMessageFromJSON(data []byte) (*ExpenseSyncMessage, error) {
	var msg ExpenseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
