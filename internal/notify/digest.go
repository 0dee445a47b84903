package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rowanhall/hearth/internal/calendar"
	"github.com/rowanhall/hearth/internal/kv"
	"github.com/rowanhall/hearth/internal/ledger"
	"github.com/rowanhall/hearth/internal/model"
)

var (
	// ErrOutsideWindow means the trigger fired outside the delivery hour.
	ErrOutsideWindow = errors.New("outside delivery window")

	// ErrAlreadySent means this window's digest already went out.
	ErrAlreadySent = errors.New("digest already sent for this window")
)

// Sender is the delivery side of the digest; the Telegram client satisfies it.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// SMSSender adapts the telephony client to the Sender interface, for
// households that take the digest by text instead of Telegram.
func SMSSender(t *TelephonyClient, to string) Sender {
	return smsSender{client: t, to: to}
}

type smsSender struct {
	client *TelephonyClient
	to     string
}

func (s smsSender) Send(ctx context.Context, text string) error {
	return s.client.SendSMS(ctx, s.to, text)
}

// Digest composes and sends the morning household summary. The scheduled
// endpoint may fire at any cadence; the digest only goes out inside the
// configured local hour and at most once per day, tracked by a sent-marker
// document.
type Digest struct {
	ledger   *ledger.Ledger
	calendar *calendar.Service
	sender   Sender
	store    kv.Store
	hour     int
	loc      *time.Location
	logger   *slog.Logger

	now func() time.Time
}

func NewDigest(l *ledger.Ledger, cal *calendar.Service, sender Sender, store kv.Store, hour int, loc *time.Location, logger *slog.Logger) *Digest {
	return &Digest{
		ledger:   l,
		calendar: cal,
		sender:   sender,
		store:    store,
		hour:     hour,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// Run fires one digest attempt. A failed send leaves no marker, so the
// external scheduler's next trigger inside the window tries again.
func (d *Digest) Run(ctx context.Context) error {
	now := d.now().In(d.loc)
	if now.Hour() != d.hour {
		return fmt.Errorf("hour is %02d, window is %02d:00-%02d:59: %w", now.Hour(), d.hour, d.hour, ErrOutsideWindow)
	}

	day := now.Format("2006-01-02")
	markerKey := "digest:sent:" + day

	if _, err := d.store.Get(ctx, markerKey); err == nil {
		return ErrAlreadySent
	} else if !errors.Is(err, kv.ErrNotFound) {
		return err
	}

	text, err := d.compose(ctx, day, now)
	if err != nil {
		return err
	}

	if err := d.sender.Send(ctx, text); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	marker, _ := json.Marshal(map[string]string{"sent_at": d.now().UTC().Format(time.RFC3339)})
	if _, err := d.store.Put(ctx, markerKey, marker, 0); err != nil && !errors.Is(err, kv.ErrVersionConflict) {
		d.logger.Warn("record digest marker", "error", err)
	}

	d.logger.Info("digest sent", "day", day)
	return nil
}

func (d *Digest) compose(ctx context.Context, day string, now time.Time) (string, error) {
	events, err := d.calendar.ListDay(ctx, day)
	if err != nil {
		return "", fmt.Errorf("list today's events: %w", err)
	}
	pending, err := d.ledger.ListCompletions(ctx, ledger.CompletionFilter{Status: model.CompletionPending})
	if err != nil {
		return "", fmt.Errorf("list pending completions: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Good morning! %s\n", now.Format("Monday, Jan 2"))

	if len(events) == 0 {
		b.WriteString("No events on the calendar today.\n")
	} else {
		b.WriteString("Today:\n")
		for _, e := range events {
			if e.Start != "" {
				fmt.Fprintf(&b, "  %s-%s %s\n", e.Start, e.End, e.Title)
			} else {
				fmt.Fprintf(&b, "  all day: %s\n", e.Title)
			}
		}
	}

	switch len(pending) {
	case 0:
	case 1:
		b.WriteString("1 chore completion is waiting for approval.\n")
	default:
		fmt.Fprintf(&b, "%d chore completions are waiting for approval.\n", len(pending))
	}

	return b.String(), nil
}

// Agenda renders today's event list as a short text reply, used by the
// inbound SMS webhook.
func (d *Digest) Agenda(ctx context.Context) (string, error) {
	day := d.now().In(d.loc).Format("2006-01-02")
	events, err := d.calendar.ListDay(ctx, day)
	if err != nil {
		return "", fmt.Errorf("list today's events: %w", err)
	}
	if len(events) == 0 {
		return "Nothing on the calendar today.", nil
	}

	var b strings.Builder
	for i, e := range events {
		if i > 0 {
			b.WriteString("\n")
		}
		if e.Start != "" {
			fmt.Fprintf(&b, "%s %s", e.Start, e.Title)
		} else {
			b.WriteString(e.Title)
		}
	}
	return b.String(), nil
}
