// Package notification delivers subscription notifications by email, or to
// the log when no SMTP relay is configured.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rackgrid/rackgrid/internal/application/subscription/usecases"
	"github.com/rackgrid/rackgrid/internal/shared/config"
	"github.com/rackgrid/rackgrid/internal/shared/goroutine"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

const deliveryTimeout = 30 * time.Second

// Dispatcher implements usecases.Notifier. Delivery runs on its own
// goroutine; failures are logged and never reach the caller.
type Dispatcher struct {
	sender    Sender
	renderer  *Renderer
	operators []string
	contacts  map[string][]string
	logger    logger.Interface
}

// NewDispatcher builds a dispatcher. A nil sender logs notifications
// instead of mailing them.
func NewDispatcher(sender Sender, cfg config.EmailConfig, log logger.Interface) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		renderer:  NewRenderer(),
		operators: cfg.OperatorAddresses,
		contacts:  cfg.FacilityContacts,
		logger:    log,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n usecases.Notification) {
	goroutine.SafeGoWithTimeout(ctx, d.logger, "notification", deliveryTimeout, func(ctx context.Context) {
		if err := d.Deliver(ctx, n); err != nil {
			d.logger.Errorw("failed to deliver notification",
				"facility_id", n.FacilityID,
				"category", n.Category,
				"error", err,
			)
		}
	})
}

// Deliver sends n synchronously.
func (d *Dispatcher) Deliver(ctx context.Context, n usecases.Notification) error {
	recipients := d.recipients(n)
	if d.sender == nil || len(recipients) == 0 {
		d.logger.Infow("notification",
			"facility_id", n.FacilityID,
			"category", n.Category,
			"reference_id", n.ReferenceID,
			"message", n.Message,
		)
		return nil
	}

	msg, err := d.render(n, recipients)
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, msg)
}

func (d *Dispatcher) recipients(n usecases.Notification) []string {
	if n.Category.ForOperators() {
		return d.operators
	}
	return d.contacts[n.FacilityID]
}

func (d *Dispatcher) render(n usecases.Notification, to []string) (Message, error) {
	subject := fmt.Sprintf("[RackGrid] %s: %s", categoryTitle(n.Category), n.FacilityID)

	var b strings.Builder
	fmt.Fprintf(&b, "**Facility:** %s\n\n", n.FacilityID)
	b.WriteString(n.Message)
	b.WriteString("\n")
	if n.ReferenceID != "" {
		fmt.Fprintf(&b, "\nReference: `%s`\n", n.ReferenceID)
	}
	plain := b.String()

	html, err := d.renderer.ToHTML(plain)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, PlainBody: plain, HTMLBody: html}, nil
}

// categoryTitle turns "renewal_failed" into "Renewal Failed".
func categoryTitle(c usecases.NotificationCategory) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(c), "_", " "))
}
