// Package notify delivers high-scoring postings to external channels at most
// once per channel.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/metrics"
	"github.com/spigell/jobradar/internal/posting"
	"go.uber.org/zap"
)

// DefaultThreshold is the minimum combined score for channels without their own.
const DefaultThreshold = 0.5

// Channel is a notification sink.
type Channel interface {
	Name() string
	// IsAvailable is false when the channel lacks configuration.
	IsAvailable() bool
	// Send delivers postings and reports one outcome per posting.
	Send(ctx context.Context, postings []*posting.Posting) []Outcome
}

// Thresholder is implemented by channels with their own minimum score.
type Thresholder interface {
	MinScore() (float64, bool)
}

// Outcome is the delivery result of one posting.
type Outcome struct {
	PostingID int64
	Success   bool
	Error     string
}

// Store is the subset of storage the dispatcher needs.
type Store interface {
	GetUnnotified(ctx context.Context, channel string, minScore float64) ([]*posting.Posting, error)
	RecordNotification(ctx context.Context, postingID int64, channel string, status posting.ReceiptStatus, errText string) error
}

// ChannelSummary reports what happened on one channel.
type ChannelSummary struct {
	Pending int
	Sent    int
	Failed  int
	Skipped bool
}

// Summary maps channel names to their results.
type Summary map[string]ChannelSummary

// Sent is the total of successful deliveries.
func (s Summary) Sent() int {
	total := 0
	for _, c := range s {
		total += c.Sent
	}
	return total
}

// Dispatcher fans unnotified postings out to channels.
type Dispatcher struct {
	store     Store
	channels  []Channel
	threshold float64
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewDispatcher builds a dispatcher. threshold applies to channels that do
// not override it. Zero notifies every posting; negative values mean unset
// and fall back to DefaultThreshold.
func NewDispatcher(store Store, channels []Channel, threshold float64, log *zap.Logger, m *metrics.Collector) *Dispatcher {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return &Dispatcher{
		store:     store,
		channels:  channels,
		threshold: threshold,
		logger:    logger.OrNop(log).Named("notify"),
		metrics:   m,
	}
}

// Channels returns the configured channels.
func (d *Dispatcher) Channels() []Channel {
	return d.channels
}

func (d *Dispatcher) minScore(ch Channel) float64 {
	if t, ok := ch.(Thresholder); ok {
		if v, set := t.MinScore(); set {
			return v
		}
	}
	return d.threshold
}

// SendAll runs every available channel. A storage failure on one channel does
// not stop the others; all such failures are returned together.
func (d *Dispatcher) SendAll(ctx context.Context) (Summary, error) {
	summary := make(Summary, len(d.channels))
	var errs []error

	for _, ch := range d.channels {
		name := ch.Name()
		log := d.logger.With(zap.String(logger.FieldChannel, name))

		if !ch.IsAvailable() {
			log.Debug("channel not available, skipping")
			summary[name] = ChannelSummary{Skipped: true}
			continue
		}

		result, err := d.sendChannel(ctx, ch, log)
		summary[name] = result
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}

	return summary, errors.Join(errs...)
}

func (d *Dispatcher) sendChannel(ctx context.Context, ch Channel, log *zap.Logger) (ChannelSummary, error) {
	var result ChannelSummary
	name := ch.Name()

	pending, err := d.store.GetUnnotified(ctx, name, d.minScore(ch))
	if err != nil {
		return result, err
	}
	result.Pending = len(pending)
	if len(pending) == 0 {
		log.Info("no new postings to notify")
		return result, nil
	}

	var errs []error
	for _, o := range ch.Send(ctx, pending) {
		status := posting.ReceiptSent
		if o.Success {
			result.Sent++
		} else {
			status = posting.ReceiptFailed
			result.Failed++
			log.Warn("notification failed", zap.Int64(logger.FieldPostingID, o.PostingID), zap.String("error", o.Error))
		}
		d.metrics.Notification(name, string(status))

		if err := d.store.RecordNotification(ctx, o.PostingID, name, status, o.Error); err != nil {
			errs = append(errs, err)
		}
	}

	log.Info("notifications dispatched",
		zap.Int("pending", result.Pending),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, errors.Join(errs...)
}

// Failed marks every posting as failed with the same message.
func Failed(postings []*posting.Posting, msg string) []Outcome {
	out := make([]Outcome, 0, len(postings))
	for _, p := range postings {
		out = append(out, Outcome{PostingID: p.ID, Error: msg})
	}
	return out
}

// Succeeded marks every posting as delivered.
func Succeeded(postings []*posting.Posting) []Outcome {
	out := make([]Outcome, 0, len(postings))
	for _, p := range postings {
		out = append(out, Outcome{PostingID: p.ID, Success: true})
	}
	return out
}
