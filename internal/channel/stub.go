package channel

import (
	"context"

	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/models"

	"github.com/google/uuid"
)

// Stub accepts every message without sending it. Receipts are marked Simulated.
type Stub struct {
	Channel models.Channel
	logger  logger.Logger
}

func NewStub(ch models.Channel, log logger.Logger) *Stub {
	return &Stub{
		Channel: ch,
		logger:  log.WithFields(map[string]interface{}{"transport": "stub", "channel": string(ch)}),
	}
}

func (s *Stub) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	id := uuid.NewString()
	s.logger.Warn("message not sent, stub transport", map[string]interface{}{
		"messageId": id,
		"to":        msg.To,
	})
	return Receipt{Transport: "stub", MessageID: id, Simulated: true}, nil
}
