package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/directory"
	"github.com/segyhp/fee-ledger/internal/domain"
)

// Dispatcher resolves the recipient and sends on its own goroutine.
// Failures are logged and never reach the caller.
type Dispatcher struct {
	sender    Sender
	directory directory.Resolver
	timeout   time.Duration
	logger    *logrus.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(sender Sender, dir directory.Resolver, timeout time.Duration, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		directory: dir,
		timeout:   timeout,
		logger:    logger,
	}
}

func (d *Dispatcher) PaymentReceived(receipt domain.Receipt) {
	d.dispatch("payment_confirmation", receipt.Owner, func(ctx context.Context, party *domain.Party) error {
		return d.sender.SendPaymentConfirmation(ctx, party, receipt)
	})
}

func (d *Dispatcher) OverdueReminder(notice domain.OverdueNotice) {
	d.dispatch("overdue_reminder", notice.Owner, func(ctx context.Context, party *domain.Party) error {
		return d.sender.SendOverdueReminder(ctx, party, notice)
	})
}

// Wait blocks until every dispatched notification has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(kind string, owner domain.Owner, send func(context.Context, *domain.Party) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		entry := d.logger.WithFields(logrus.Fields{
			"notification": kind,
			"owner":        owner.String(),
		})

		party, err := d.directory.Resolve(ctx, owner)
		if err != nil {
			entry.WithError(err).Warn("failed to resolve notification recipient")
			return
		}
		if !party.Exists {
			entry.Warn("notification recipient not found in directory")
			return
		}

		if err := send(ctx, party); err != nil {
			entry.WithError(err).Warn("notification not delivered")
		}
	}()
}
