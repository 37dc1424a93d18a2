package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/events"
)

// FeedPublisher publishes raw payloads on a named channel.
type FeedPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService forwards domain events to the change feed and alert webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	feed       FeedPublisher
	webhook    *resty.Client
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, feed FeedPublisher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2)
	if timeout := cfg.WebhookTimeout(); timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &NotificationService{
		dispatcher: dispatcher,
		feed:       feed,
		webhook:    client,
		logger:     nopIfNil(logger),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllTypes {
		n.dispatcher.Subscribe(eventType, n.handleChangeFeed)
	}
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
}

// FeedChannel is the redis channel carrying an organization's ticket changes.
func (n *NotificationService) FeedChannel(organizationID string) string {
	prefix := n.cfg.ChannelPrefix
	if prefix == "" {
		prefix = "tickets"
	}
	return fmt.Sprintf("%s:%s", prefix, organizationID)
}

func (n *NotificationService) handleChangeFeed(ctx context.Context, event events.Event) error {
	if n.feed == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	if err := n.feed.Publish(ctx, n.FeedChannel(event.OrganizationID), payload); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	n.logger.Debug("change published",
		zap.String("event_type", string(event.Type)),
		zap.String("organization_id", event.OrganizationID),
		zap.String("ticket_id", event.TicketID))
	return nil
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	n.logger.Info("SLABreached",
		zap.String("organization_id", event.OrganizationID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}

	resp, err := n.webhook.R().
		SetContext(ctx).
		SetBody(event).
		Post(n.cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("sla webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sla webhook: unexpected status %d", resp.StatusCode())
	}
	return nil
}
