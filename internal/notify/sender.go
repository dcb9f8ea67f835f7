// Package notify tells payers about receipts and overdue balances.
// Delivery is best-effort and never part of a ledger transaction.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/config"
	"github.com/segyhp/fee-ledger/internal/domain"
)

var ErrNoAddress = errors.New("party has no e-mail address")

// Sender delivers messages to a resolved party
type Sender interface {
	SendPaymentConfirmation(ctx context.Context, party *domain.Party, receipt domain.Receipt) error
	SendOverdueReminder(ctx context.Context, party *domain.Party, notice domain.OverdueNotice) error
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// EmailSender sends plain-text e-mail over SMTP
type EmailSender struct {
	cfg    config.SMTPConfig
	logger *logrus.Logger
	send   sendFunc
}

func NewEmailSender(cfg config.SMTPConfig, logger *logrus.Logger) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (s *EmailSender) SendPaymentConfirmation(ctx context.Context, party *domain.Party, receipt domain.Receipt) error {
	if party.Email == "" {
		return ErrNoAddress
	}
	return s.deliver(ctx, paymentConfirmation(s.cfg.SenderEmail, party, receipt))
}

func (s *EmailSender) SendOverdueReminder(ctx context.Context, party *domain.Party, notice domain.OverdueNotice) error {
	if party.Email == "" {
		return ErrNoAddress
	}
	return s.deliver(ctx, overdueReminder(s.cfg.SenderEmail, party, notice))
}

func (s *EmailSender) deliver(ctx context.Context, e *email.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %v: %v", e.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}

func paymentConfirmation(from string, party *domain.Party, receipt domain.Receipt) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{party.Email}
	e.Subject = fmt.Sprintf("Payment received: %s", receipt.ReferenceNumber)

	body := fmt.Sprintf("Dear %s,\n\n", party.DisplayName)
	body += fmt.Sprintf(
		"We have received your payment of %s on %s.\n"+
			"Reference: %s\n"+
			"Outstanding balance on this fee: %s\n",
		receipt.Amount.StringFixed(2), receipt.PaidAt.Format("2006-01-02 15:04"),
		receipt.ReferenceNumber, receipt.BalanceDue.StringFixed(2),
	)
	body += "\nThank you,\nBursar's Office"
	e.Text = []byte(body)

	return e
}

func overdueReminder(from string, party *domain.Party, notice domain.OverdueNotice) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{party.Email}
	e.Subject = fmt.Sprintf("Overdue fee: %s", notice.ChargeRef)

	body := fmt.Sprintf("Dear %s,\n\n", party.DisplayName)
	body += fmt.Sprintf(
		"The %s fee due on %s is %d day(s) overdue.\n"+
			"Outstanding balance: %s\n",
		notice.ChargeRef, notice.DueDate.Format("2006-01-02"), notice.DaysOverdue,
		notice.BalanceDue.StringFixed(2),
	)
	if notice.Fine.IsPositive() {
		body += fmt.Sprintf("This includes a late fine of %s.\n", notice.Fine.StringFixed(2))
	}
	body += "Please settle the balance at the bursar's desk as soon as possible.\n"
	body += "\nThank you,\nBursar's Office"
	e.Text = []byte(body)

	return e
}

// LogSender writes notifications to the log instead of delivering them
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendPaymentConfirmation(_ context.Context, party *domain.Party, receipt domain.Receipt) error {
	s.logger.WithFields(logrus.Fields{
		"owner":     party.Owner.String(),
		"reference": receipt.ReferenceNumber,
		"amount":    receipt.Amount.StringFixed(2),
		"balance":   receipt.BalanceDue.StringFixed(2),
	}).Info("payment confirmation")
	return nil
}

func (s *LogSender) SendOverdueReminder(_ context.Context, party *domain.Party, notice domain.OverdueNotice) error {
	s.logger.WithFields(logrus.Fields{
		"owner":        party.Owner.String(),
		"assignment":   notice.AssignmentID.String(),
		"balance":      notice.BalanceDue.StringFixed(2),
		"days_overdue": notice.DaysOverdue,
	}).Info("overdue reminder")
	return nil
}
