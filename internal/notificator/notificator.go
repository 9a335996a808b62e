package notificator

import (
	"context"
	"runtime/debug"

	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/logger"
)

// Sender delivers a rendered notification to one destination.
type Sender interface {
	Send(ctx context.Context, message string) error
}

// Notificator fans a certification outcome out to every configured sender.
// Delivery failures are logged and never reach the caller.
type Notificator struct {
	logger *logger.Logger

	senders map[string]Sender
}

// NewNotificator creates a Notificator. Nil senders are skipped, so a deployment
// without Telegram or e-mail configured gets a silent notificator.
func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	n := &Notificator{logger: logger, senders: make(map[string]Sender)}
	if telNotif != nil {
		n.AddSender("telegram", telNotif)
	}
	if emailNotif != nil {
		n.AddSender("email", emailNotif)
	}
	return n
}

// AddSender registers an extra destination under name.
func (n *Notificator) AddSender(name string, sender Sender) {
	n.senders[name] = sender
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Errorw("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Notify sends the outcome of a processed request to every sender, one after the other.
func (n *Notificator) Notify(ctx context.Context, request *models.CertificationRequest, response *models.CertificationResponse) {
	if len(n.senders) == 0 {
		n.logger.Debugw("No notification sender configured", "nss", request.NSS)
		return
	}

	message := models.NewNotification(request, response).String()
	for name, sender := range n.senders {
		n.safeCall(func() {
			if err := sender.Send(ctx, message); err != nil {
				n.logger.Errorw("Failed to send notification", "sender", name, "nss", request.NSS, "error", err)
				return
			}
			n.logger.Debugw("Notification sent", "sender", name, "nss", request.NSS)
		}, name+"Notification")
	}
}
