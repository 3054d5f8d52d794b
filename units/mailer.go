package units

import (
	"context"
	"math/rand"
	"sync"
)

// Email is a rendered message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers emails.
type Mailer interface {
	Send(ctx context.Context, email Email) (DeliveryStatus, error)
}

// SimulatedMailer pretends to deliver email. Each send succeeds with
// probability SuccessRate, drawn from a generator seeded once so runs with
// the same seed produce the same outcomes.
type SimulatedMailer struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
	sent        []Email
}

var _ Mailer = (*SimulatedMailer)(nil)

// NewSimulatedMailer creates a mailer with the given success rate and seed.
func NewSimulatedMailer(successRate float64, seed int64) *SimulatedMailer {
	return &SimulatedMailer{
		rng:         rand.New(rand.NewSource(seed)),
		successRate: successRate,
	}
}

// Send records the email and draws its delivery status.
func (m *SimulatedMailer) Send(ctx context.Context, email Email) (DeliveryStatus, error) {
	if err := ctx.Err(); err != nil {
		return DeliveryFailed, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	if m.rng.Float64() < m.successRate {
		return DeliverySent, nil
	}
	return DeliveryFailed, nil
}

// Sent returns every email passed to Send.
func (m *SimulatedMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}
