package services

import (
	"context"

	"github.com/dmitrijs2005/gophmail/internal/events"
	"github.com/dmitrijs2005/gophmail/internal/logging"
)

// NotificationService reports user-visible outcomes: it logs them and
// publishes an events.Notification.
type NotificationService interface {
	Info(ctx context.Context, msg string)
	Success(ctx context.Context, msg string)
	Error(ctx context.Context, msg string, err error)
}

type notificationService struct {
	log logging.Logger
	pub events.Publisher
}

func NewNotificationService(log logging.Logger, pub events.Publisher) NotificationService {
	return &notificationService{log: log, pub: pub}
}

func (n *notificationService) Info(ctx context.Context, msg string) {
	n.log.Info(ctx, msg)
	n.pub.Publish(events.Notification{Level: events.LevelInfo, Message: msg})
}

func (n *notificationService) Success(ctx context.Context, msg string) {
	n.log.Info(ctx, msg)
	n.pub.Publish(events.Notification{Level: events.LevelSuccess, Message: msg})
}

func (n *notificationService) Error(ctx context.Context, msg string, err error) {
	n.log.Error(ctx, msg, "err", err)
	n.pub.Publish(events.Notification{Level: events.LevelError, Message: msg, Err: err})
}
