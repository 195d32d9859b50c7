package session

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/orderline/orderline/internal/order"
)

// Session is one conversation with one customer. It owns the order task tree
// and a transcript of the exchanges that built it.
type Session struct {
	ID        string    `yaml:"id"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
	// Closed is set when the order finalizes or cancels out; further turns
	// are rejected.
	Closed bool `yaml:"closed"`

	Tree       *order.OrderTask `yaml:"order"`
	Transcript []Exchange       `yaml:"transcript,omitempty"`
}

// Exchange is one customer utterance and the reply it produced.
type Exchange struct {
	Customer string    `yaml:"customer"`
	Reply    string    `yaml:"reply"`
	At       time.Time `yaml:"at"`
}

func New() *Session {
	id := ulid.Make().String()
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Tree:      order.New(id),
	}
}

func (s *Session) Record(customer, reply string) {
	now := time.Now().UTC()
	s.Transcript = append(s.Transcript, Exchange{Customer: customer, Reply: reply, At: now})
	s.UpdatedAt = now
}
