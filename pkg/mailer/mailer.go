package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"

	gomail "gopkg.in/gomail.v2"

	"github.com/angelmondragon/vouchers-backend/pkg/artifact"
	"github.com/angelmondragon/vouchers-backend/pkg/config"
	"github.com/angelmondragon/vouchers-backend/pkg/db/models"
	"github.com/angelmondragon/vouchers-backend/pkg/logger"
)

// Mailer sends rendered voucher artifacts over SMTP. Dispatch is best-effort:
// the voucher lifecycle never depends on email succeeding.
type Mailer struct {
	dialer    *gomail.Dialer
	from      string
	recipient string
	logg      *logger.Logger
}

// Sender is the surface the voucher service depends on.
type Sender interface {
	SendVoucher(ctx context.Context, voucher *models.Voucher, art *artifact.Artifact) error
}

// New builds a mailer from configuration. Returns nil when email is not
// configured; callers treat a nil mailer as dispatch disabled.
func New(cfg config.EmailConfig, logg *logger.Logger) *Mailer {
	if !cfg.Enabled() {
		return nil
	}
	return &Mailer{
		dialer:    gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Address, cfg.Password),
		from:      cfg.Address,
		recipient: cfg.Recipient,
		logg:      logg,
	}
}

// SendVoucher emails the artifact to the configured recipient.
func (m *Mailer) SendVoucher(ctx context.Context, voucher *models.Voucher, art *artifact.Artifact) error {
	if m == nil {
		return errors.New("mailer not configured")
	}
	if voucher == nil || art == nil {
		return errors.New("voucher and artifact are required")
	}

	msg := m.buildMessage(voucher, art)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending voucher email: %w", err)
	}

	if m.logg != nil {
		ctx = m.logg.WithVoucherID(ctx, voucher.VoucherID.String())
		m.logg.Info(ctx, "voucher artifact emailed")
	}
	return nil
}

func (m *Mailer) buildMessage(voucher *models.Voucher, art *artifact.Artifact) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.recipient)
	msg.SetHeader("Subject", fmt.Sprintf("Your %s%% discount voucher", voucher.Percentage))

	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your %s%% discount voucher is attached. Show the code at checkout to redeem it.</p>",
		voucher.FirstName, voucher.Percentage,
	)
	if voucher.ExpiryDate != nil {
		body += fmt.Sprintf("<p>The voucher is valid until %s.</p>", voucher.ExpiryDate.Format("2 January 2006"))
	}
	msg.SetBody("text/html", body)

	msg.Attach(art.Filename,
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(art.Data)
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {art.ContentType}}),
	)
	return msg
}
