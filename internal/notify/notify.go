// Package notify delivers setup alerts to operators.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quantonic/setforge/internal/domain"
)

// Alert is one tradable setup promoted past the monitor's threshold.
type Alert struct {
	Setup         domain.Setup `json:"setup"`
	WeightedScore float64      `json:"weighted_score"`
}

// Notifier delivers alerts over one channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Console logs alerts through zerolog. Always available; used as the
// default channel when no Telegram credentials are configured.
type Console struct {
	log zerolog.Logger
}

// NewConsole builds a console notifier.
func NewConsole(log zerolog.Logger) *Console {
	return &Console{log: log}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Send(_ context.Context, a Alert) error {
	c.log.Info().
		Str("symbol", a.Setup.Symbol).
		Str("direction", string(a.Setup.Direction)).
		Str("interval", string(a.Setup.Interval)).
		Float64("confidence", a.Setup.Confidence).
		Float64("weighted_score", a.WeightedScore).
		Float64("entry", a.Setup.Entry).
		Float64("stop", a.Setup.StopLoss).
		Float64("target", a.Setup.TakeProfit).
		Msg("setup alert")
	return nil
}

// Fanout sends to every channel and reports all failures together.
type Fanout struct {
	channels []Notifier
}

// NewFanout wraps a channel set.
func NewFanout(channels ...Notifier) *Fanout {
	return &Fanout{channels: channels}
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Send(ctx context.Context, a Alert) error {
	var errs []error
	for _, ch := range f.channels {
		if err := ch.Send(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FormatMessage renders the alert for human channels.
func FormatMessage(a Alert) string {
	s := a.Setup
	arrow := "▲ LONG"
	if s.Direction == domain.SideShort {
		arrow = "▼ SHORT"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s]\n", arrow, s.Symbol, s.Interval)
	fmt.Fprintf(&b, "Confidence: %.0f (weighted %.0f)\n", s.Confidence, a.WeightedScore)
	fmt.Fprintf(&b, "Entry: %.6g\n", s.Entry)
	fmt.Fprintf(&b, "Stop: %.6g | Target: %.6g\n", s.StopLoss, s.TakeProfit)
	if len(s.DCALevels) > 0 {
		b.WriteString("DCA:")
		for _, lvl := range s.DCALevels {
			fmt.Fprintf(&b, " %.6g(%.0f%%)", lvl.Price, lvl.Weight)
		}
		b.WriteString("\n")
	}
	for _, f := range s.Factors {
		if f.Contribution > 0 {
			fmt.Fprintf(&b, "+ %s: %.1f\n", f.Name, f.Contribution)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
