package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"luxstock/internal/core"
)

type EventType string

const (
	ItemCreated EventType = "created"
	ItemUpdated EventType = "updated"
	ItemDeleted EventType = "deleted"
)

// ItemEvent announces a change to an inventory item. It carries only the
// identity and affected periods; consumers re-read the store for data.
type ItemEvent struct {
	Type      EventType `json:"type"`
	ItemID    string    `json:"itemId"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	PrevYear  int       `json:"prevYear,omitempty"`
	PrevMonth int       `json:"prevMonth,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewItemEvent builds an event for item. prev is the period the item
// occupied before an update; pass the zero Period otherwise.
func NewItemEvent(t EventType, item core.RawItem, prev core.Period) *ItemEvent {
	ev := &ItemEvent{
		Type:      t,
		ItemID:    item.ID,
		Year:      item.Year,
		Month:     item.Month,
		Timestamp: time.Now().UTC(),
	}
	if prev.Year != 0 && prev != item.Period() {
		ev.PrevYear = prev.Year
		ev.PrevMonth = prev.Month
	}
	return ev
}

// Periods returns the months touched by the event, current first.
func (m *ItemEvent) Periods() []core.Period {
	out := []core.Period{core.MonthPeriod(m.Year, m.Month)}
	if m.PrevYear != 0 {
		prev := core.MonthPeriod(m.PrevYear, m.PrevMonth)
		if prev != out[0] {
			out = append(out, prev)
		}
	}
	return out
}

func (m *ItemEvent) Validate() error {
	switch m.Type {
	case ItemCreated, ItemUpdated, ItemDeleted:
	default:
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	if m.ItemID == "" {
		return fmt.Errorf("event without item id")
	}
	if m.Month < 1 || m.Month > 12 {
		return fmt.Errorf("event period: %w", core.ErrInvalidMonth)
	}
	if err := core.YearPeriod(m.Year).Validate(); err != nil {
		return fmt.Errorf("event period: %w", err)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ItemEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ItemEventFromJSON decodes and validates an event
func ItemEventFromJSON(data []byte) (*ItemEvent, error) {
	var msg ItemEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
