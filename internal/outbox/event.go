package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/google/uuid"
)

const EventOrderCompleted = "order.completed"

type Event struct {
	ID          int64
	EventID     string
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type orderCompletedPayload struct {
	EventID     string    `json:"event_id"`
	OrderNumber string    `json:"order_number"`
	OrderToken  string    `json:"order_token"`
	Total       int64     `json:"total"`
	Currency    string    `json:"currency"`
	Customer    string    `json:"customer,omitempty"`
	Email       string    `json:"email,omitempty"`
	Items       int       `json:"items"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewOrderCompleted builds the event announcing a completed checkout. The
// order token is the aggregate id so events of one order stay ordered.
func NewOrderCompleted(order *domain.Order, now time.Time) (*Event, error) {
	completedAt := now.UTC()
	if order.CheckoutCompletedAt != nil {
		completedAt = order.CheckoutCompletedAt.UTC()
	}

	eventID := uuid.NewString()
	payload, err := json.Marshal(orderCompletedPayload{
		EventID:     eventID,
		OrderNumber: order.Number,
		OrderToken:  order.TokenValue,
		Total:       order.Total,
		Currency:    order.CurrencyCode,
		Customer:    order.Customer,
		Email:       order.BillingEmail(),
		Items:       order.ItemCount(),
		CompletedAt: completedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order completed payload: %w", err)
	}

	return &Event{
		EventID:     eventID,
		AggregateID: order.TokenValue,
		EventType:   EventOrderCompleted,
		Payload:     payload,
		CreatedAt:   completedAt,
	}, nil
}
