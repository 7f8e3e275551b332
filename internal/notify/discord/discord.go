// Package discord posts matching postings to a Discord webhook as embeds.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/notify"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/ratelimit"
	"github.com/spigell/jobradar/internal/retry"
	"go.uber.org/zap"
)

const (
	// Name is the channel name used in notification receipts.
	Name = "discord"

	// maxEmbeds is the Discord limit of embeds per message.
	maxEmbeds      = 10
	headline       = "**New matching jobs found!**"
	failureMessage = "Webhook failed"
	requestTimeout = 15 * time.Second

	colorHigh   = 0x2ecc71
	colorMedium = 0xf39c12
	colorLow    = 0xe74c3c
)

// Options configure the webhook channel.
type Options struct {
	Enabled    bool
	WebhookURL string
	// MinScore overrides the dispatcher threshold when set.
	MinScore   *float64
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	Retry      retry.Config
}

// Channel implements notify.Channel.
type Channel struct {
	opts   Options
	logger *zap.Logger
}

var _ notify.Channel = (*Channel)(nil)

func New(opts Options, log *zap.Logger) *Channel {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}

	c := &Channel{opts: opts, logger: logger.OrNop(log).Named(Name)}
	if opts.Enabled && opts.WebhookURL == "" {
		c.logger.Warn("discord notifications enabled but webhook url is not configured")
	}
	return c
}

func (c *Channel) Name() string { return Name }

func (c *Channel) IsAvailable() bool {
	return c.opts.Enabled && c.opts.WebhookURL != ""
}

func (c *Channel) MinScore() (float64, bool) {
	if c.opts.MinScore == nil {
		return 0, false
	}
	return *c.opts.MinScore, true
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title  string  `json:"title"`
	URL    string  `json:"url,omitempty"`
	Color  int     `json:"color"`
	Fields []field `json:"fields"`
}

type message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

// Color maps a score to the embed colour: green, orange or red.
func Color(score float64) int {
	switch {
	case score >= 0.7:
		return colorHigh
	case score >= 0.4:
		return colorMedium
	default:
		return colorLow
	}
}

func newEmbed(p *posting.Posting) embed {
	score := p.Score()
	return embed{
		Title: fmt.Sprintf("%s @ %s", p.Title, p.Company),
		URL:   p.URL,
		Color: Color(score),
		Fields: []field{
			{Name: "Score", Value: strconv.Itoa(int(score*100+0.5)) + "%", Inline: true},
			{Name: "Location", Value: p.DisplayLocation(), Inline: true},
			{Name: "Source", Value: p.Source, Inline: true},
		},
	}
}

// Send posts postings in batches of ten embeds. Every posting of a batch
// shares the batch outcome.
func (c *Channel) Send(ctx context.Context, postings []*posting.Posting) []notify.Outcome {
	if !c.IsAvailable() || len(postings) == 0 {
		return nil
	}

	batches := chunk(postings, maxEmbeds)
	outcomes := make([]notify.Outcome, 0, len(postings))

	for i, batch := range batches {
		msg := message{Embeds: make([]embed, 0, len(batch))}
		if len(batches) == 1 {
			msg.Content = headline
		}
		for _, p := range batch {
			msg.Embeds = append(msg.Embeds, newEmbed(p))
		}

		if err := c.opts.Limiter.Wait(ctx, Name); err != nil {
			outcomes = append(outcomes, notify.Failed(batch, err.Error())...)
			continue
		}

		if err := c.post(ctx, msg); err != nil {
			c.logger.Error("discord webhook error", zap.Int("batch", i+1), zap.Int("embeds", len(batch)), zap.Error(err))
			outcomes = append(outcomes, notify.Failed(batch, errorText(err))...)
			continue
		}

		c.logger.Debug("discord batch delivered", zap.Int("batch", i+1), zap.Int("embeds", len(batch)))
		outcomes = append(outcomes, notify.Succeeded(batch)...)
	}

	return outcomes
}

func (c *Channel) post(ctx context.Context, msg message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	_, err = retry.Do(ctx, c.opts.Retry, retry.IsTransient, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.WebhookURL, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.opts.HTTPClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
			return struct{}{}, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return struct{}{}, &retry.StatusError{Service: Name, Code: resp.StatusCode, Body: string(body)}
	})
	return err
}

// errorText keeps receipts short for plain HTTP failures.
func errorText(err error) string {
	var status *retry.StatusError
	if errors.As(err, &status) {
		return failureMessage
	}
	return err.Error()
}

func chunk(postings []*posting.Posting, size int) [][]*posting.Posting {
	var out [][]*posting.Posting
	for start := 0; start < len(postings); start += size {
		end := min(start+size, len(postings))
		out = append(out, postings[start:end])
	}
	return out
}
