// Package channel holds the outbound transports a follow-up can be sent through.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lead-intake-workers/internal/models"
)

var (
	// ErrTransportNotConfigured is returned when a channel has no usable transport.
	ErrTransportNotConfigured = errors.New("transport not configured")
	// ErrInvalidAddress is returned when the recipient cannot be addressed on the channel.
	ErrInvalidAddress = errors.New("invalid recipient address")
)

// Message is one rendered outbound communication.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Receipt describes an accepted send.
type Receipt struct {
	Transport string
	MessageID string
	// Simulated is set when no message actually left the process.
	Simulated bool
}

// Sender delivers a message over a single channel.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Router maps channels to their configured sender.
type Router struct {
	mu      sync.RWMutex
	senders map[models.Channel]Sender
}

func NewRouter() *Router {
	return &Router{senders: make(map[models.Channel]Sender)}
}

func (r *Router) Register(ch models.Channel, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[ch] = s
}

// SenderFor returns the sender registered for ch, or a sender that always
// fails with ErrTransportNotConfigured.
func (r *Router) SenderFor(ch models.Channel) Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.senders[ch]; ok {
		return s
	}
	return Unconfigured{Channel: ch}
}

// Unconfigured rejects every message.
type Unconfigured struct {
	Channel models.Channel
}

func (u Unconfigured) Send(context.Context, Message) (Receipt, error) {
	return Receipt{}, fmt.Errorf("%s: %w", u.Channel, ErrTransportNotConfigured)
}
