// Package notify fans order and stock events out to SMS and email. Delivery
// is best effort: every attempt is recorded, none is retried, and failures
// never reach the operation that triggered them.
package notify

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	"github.com/ariefcatur/go-meatshop-orders/internal/redisx"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const dedupService = "notifier"

type Dispatcher struct {
	repos   *store.Repositories
	senders map[domain.Channel]Sender
	cache   *redisx.Cache
	logger  *zap.Logger

	Now func() time.Time
}

func NewDispatcher(repos *store.Repositories, cache *redisx.Cache, logger *zap.Logger, senders ...Sender) *Dispatcher {
	m := make(map[domain.Channel]Sender, len(senders))
	for _, s := range senders {
		m[s.Channel()] = s
	}
	return &Dispatcher{
		repos:   repos,
		senders: m,
		cache:   cache,
		logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent is the events.Handler for every transport. Redelivered events
// are skipped when redis is configured.
func (d *Dispatcher) HandleEvent(ctx context.Context, env events.Envelope) error {
	if !d.cache.FirstDelivery(ctx, dedupService, env.EventID) {
		d.logger.Debug("duplicate event skipped", zap.String("event_id", env.EventID))
		return nil
	}
	switch env.EventType {
	case events.EventOrderNotification:
		p, err := events.UnwrapPayload[events.OrderNotificationPayload](env)
		if err != nil {
			return err
		}
		d.SendOrderNotification(ctx, p.Order, p.Type, p.Options)
	case events.EventLowStock:
		p, err := events.UnwrapPayload[events.LowStockPayload](env)
		if err != nil {
			return err
		}
		d.SendLowStockNotifications(ctx, p)
	default:
		d.logger.Warn("unknown event type", zap.String("event_type", env.EventType))
	}
	return nil
}

// SendOrderNotification notifies the order's customer on each channel they
// enabled. Channels run concurrently and every attempt is persisted.
func (d *Dispatcher) SendOrderNotification(ctx context.Context, order domain.Order, typ domain.NotificationType, opts events.NotificationOptions) []domain.Notification {
	user, err := d.repos.Users.Get(ctx, order.UserID)
	if err != nil {
		d.logger.Warn("notification skipped: user lookup failed",
			zap.String("order_id", order.ID),
			zap.String("user_id", order.UserID),
			zap.Error(err),
		)
		return nil
	}

	v := View{
		Name:        user.FirstName,
		OrderNumber: order.OrderNumber,
		Total:       order.Total.StringFixed(2),
		Reason:      opts.Reason,
		Notes:       opts.Notes,
		ETA:         order.EstimatedDeliveryAt.Format("2006-01-02 15:04"),
	}
	if v.Reason == "" {
		v.Reason = order.CancellationReason
	}
	if opts.Amount != nil {
		v.Amount = opts.Amount.StringFixed(2)
	} else {
		v.Amount = v.Total
	}
	return d.sendToUser(ctx, user, order.ID, typ, v)
}

// SendLowStockNotifications alerts every active admin.
func (d *Dispatcher) SendLowStockNotifications(ctx context.Context, p events.LowStockPayload) []domain.Notification {
	users, err := d.repos.Users.List(ctx)
	if err != nil {
		d.logger.Error("low stock notification: list users", zap.Error(err))
		return nil
	}
	v := View{
		Product:   p.ProductName,
		Quantity:  p.Quantity.String(),
		Threshold: p.Threshold.String(),
	}
	var out []domain.Notification
	for _, u := range users {
		if u.Role != domain.RoleAdmin || !u.IsActive {
			continue
		}
		out = append(out, d.sendToUser(ctx, u, "", domain.NotifyLowStock, v)...)
	}
	return out
}

func (d *Dispatcher) sendToUser(ctx context.Context, user domain.User, orderID string, typ domain.NotificationType, v View) []domain.Notification {
	subject, body, err := Render(typ, user.PreferredLanguage, v)
	if err != nil {
		d.logger.Error("render notification", zap.String("type", string(typ)), zap.Error(err))
		return nil
	}

	type target struct {
		channel domain.Channel
		to      string
	}
	var targets []target
	if user.Preferences.SMS && user.Phone != "" {
		targets = append(targets, target{domain.ChannelSMS, user.Phone})
	}
	if user.Preferences.Email && user.Email != "" {
		targets = append(targets, target{domain.ChannelEmail, user.Email})
	}

	results := make([]domain.Notification, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i] = d.deliver(ctx, user.ID, orderID, typ, t.channel, Message{To: t.to, Subject: subject, Body: body})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, userID, orderID string, typ domain.NotificationType, ch domain.Channel, msg Message) domain.Notification {
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		OrderID:   orderID,
		Type:      typ,
		Channel:   ch,
		Recipient: msg.To,
		Subject:   msg.Subject,
		Message:   msg.Body,
		CreatedAt: d.Now(),
	}

	sender, ok := d.senders[ch]
	var err error
	if !ok {
		err = fmt.Errorf("no sender for channel %s", ch)
	} else {
		n.MessageID, err = sender.Send(ctx, msg)
	}
	if err != nil {
		n.Status = domain.NotificationFailed
		n.Error = err.Error()
		d.logger.Warn("notification failed",
			zap.String("order_id", orderID),
			zap.String("type", string(typ)),
			zap.String("channel", string(ch)),
			zap.Error(err),
		)
	} else {
		n.Status = domain.NotificationSent
		d.logger.Info("notification sent",
			zap.String("order_id", orderID),
			zap.String("type", string(typ)),
			zap.String("channel", string(ch)),
			zap.String("message_id", n.MessageID),
		)
	}

	// the record is kept whatever the outcome, even if ctx was cancelled
	if perr := d.repos.Notifications.Put(context.WithoutCancel(ctx), n.ID, n); perr != nil {
		d.logger.Error("persist notification", zap.String("notification_id", n.ID), zap.Error(perr))
	}
	return n
}

// ListNotifications returns notifications newest first, optionally for one
// order.
func (d *Dispatcher) ListNotifications(ctx context.Context, orderID string) ([]domain.Notification, error) {
	all, err := d.repos.Notifications.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(all))
	for _, n := range all {
		if orderID == "" || n.OrderID == orderID {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
