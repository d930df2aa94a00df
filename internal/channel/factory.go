package channel

import (
	"context"
	"fmt"

	"lead-intake-workers/internal/common/aws"
	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/models"
)

// NewRouterFromConfig wires the transports selected in the delivery section.
// Channels set to "none" are left unregistered.
func NewRouterFromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Router, error) {
	r := NewRouter()
	timeout := config.GetDuration(cfg.Delivery.SendTimeout)

	switch cfg.Delivery.EmailTransport {
	case config.TransportNone:
	case config.TransportStub:
		r.Register(models.ChannelEmail, NewStub(models.ChannelEmail, log))
	case config.TransportSMTP:
		r.Register(models.ChannelEmail, NewSMTP(cfg.Integrations.SMTP, timeout))
	case config.TransportSES:
		client, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("ses transport: %w", err)
		}
		r.Register(models.ChannelEmail, NewSES(client, cfg.Integrations.AWS.SES.FromEmail))
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.Delivery.EmailTransport)
	}

	switch cfg.Delivery.SMSTransport {
	case config.TransportNone:
	case config.TransportStub:
		r.Register(models.ChannelSMS, NewStub(models.ChannelSMS, log))
	case config.TransportSNS:
		client, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("sns transport: %w", err)
		}
		r.Register(models.ChannelSMS, NewSNS(client, cfg.Integrations.AWS.SNS.SenderID, cfg.Delivery.DefaultRegion))
	default:
		return nil, fmt.Errorf("unknown sms transport %q", cfg.Delivery.SMSTransport)
	}

	log.Info("channel transports configured", map[string]interface{}{
		"email": cfg.Delivery.EmailTransport,
		"sms":   cfg.Delivery.SMSTransport,
	})
	return r, nil
}
