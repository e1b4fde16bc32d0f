// Package notify tells the outside world that an issue's rewards were split.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bitfsorg/pledgesplit-go/split"
)

// Event describes a finalized split.
type Event struct {
	IssueID  string           `json:"issue_id"`
	Currency string           `json:"currency"`
	Pool     int64            `json:"pool"`
	Split    split.FinalSplit `json:"split"`
	Payouts  []split.Payout   `json:"payouts"`
}

// Notifier delivers split events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// FormatMessage renders the human-readable announcement for ev, naming each
// recipient with its share and payout.
func FormatMessage(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewards for issue #%s split", ev.IssueID)
	if len(ev.Split.Entries) == 0 {
		return b.String() + "."
	}
	b.WriteString(": ")

	for i, e := range ev.Split.Entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@%s %d.%d%%", e.Username, e.Thousandths/10, e.Thousandths%10)
		if i < len(ev.Payouts) && ev.Payouts[i].Username == e.Username {
			fmt.Fprintf(&b, " (%s)", FormatAmount(ev.Payouts[i].Amount, ev.Currency))
		}
	}
	return b.String()
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatAmount renders minor units as a two-decimal amount.
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	num := fmt.Sprintf("%d.%02d", minor/100, minor%100)
	if sym, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		return sign + sym + num
	}
	return sign + num + " " + strings.ToUpper(currency)
}

// Multi fans an event out to several notifiers. Every notifier is tried;
// the returned error joins all failures.
type Multi []Notifier

// Notify delivers ev to every notifier.
func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes events to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs ev at info level.
func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info("rewards split",
		zap.String("issue", ev.IssueID),
		zap.Int64("pool", ev.Pool),
		zap.String("currency", ev.Currency),
		zap.Int("recipients", len(ev.Split.Entries)),
		zap.String("message", FormatMessage(ev)),
	)
	return nil
}
