package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

// Delivery is what a Sender needs to reach the customer.
type Delivery struct {
	Recipient    models.User
	Notification models.Notification
}

// Sender delivers a stored notification over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, delivery Delivery) error
}

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// LogSender records deliveries in the log instead of calling a provider.
type LogSender struct {
	channel string
	logg    *logger.Logger
}

func NewEmailLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{channel: ChannelEmail, logg: logg}
}

func NewSMSLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{channel: ChannelSMS, logg: logg}
}

func (s *LogSender) Channel() string { return s.channel }

func (s *LogSender) Send(ctx context.Context, delivery Delivery) error {
	to, err := s.address(delivery.Recipient)
	if err != nil {
		return err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"channel": s.channel,
		"to":      to,
		"title":   delivery.Notification.Title,
	})
	s.logg.Info(logCtx, "notification sent")
	return nil
}

func (s *LogSender) address(user models.User) (string, error) {
	switch s.channel {
	case ChannelEmail:
		if strings.TrimSpace(user.Email) == "" {
			return "", fmt.Errorf("recipient has no email")
		}
		return user.Email, nil
	case ChannelSMS:
		if user.Phone == nil || strings.TrimSpace(*user.Phone) == "" {
			return "", fmt.Errorf("recipient has no phone number")
		}
		return *user.Phone, nil
	}
	return "", fmt.Errorf("unknown channel %q", s.channel)
}
