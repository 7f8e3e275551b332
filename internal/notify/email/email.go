// Package email sends a digest of matching postings over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/notify"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/utils"
	"go.uber.org/zap"
)

const (
	// Name is the channel name used in notification receipts.
	Name = "email"

	defaultHost = "smtp.gmail.com"
	defaultPort = 587

	reasoningPreview = 150

	defaultTimeout = 30 * time.Second
)

// Replaced in tests.
var sendMail = deliver

// Options configure the SMTP digest channel.
type Options struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	MinScore *float64
	// Timeout bounds the whole SMTP exchange, dial included.
	Timeout time.Duration
}

// Channel implements notify.Channel.
type Channel struct {
	opts    Options
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

var _ notify.Channel = (*Channel)(nil)

func New(opts Options, log *zap.Logger) *Channel {
	if opts.Host == "" {
		opts.Host = defaultHost
	}
	if opts.Port == 0 {
		opts.Port = defaultPort
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	c := &Channel{opts: opts, enabled: opts.Enabled, logger: logger.OrNop(log).Named(Name), now: time.Now}
	if opts.Enabled && (opts.Username == "" || opts.Password == "" || opts.From == "" || opts.To == "") {
		c.logger.Warn("email notifications enabled but credentials incomplete")
		c.enabled = false
	}
	return c
}

func (c *Channel) Name() string { return Name }

func (c *Channel) IsAvailable() bool { return c.enabled }

func (c *Channel) MinScore() (float64, bool) {
	if c.opts.MinScore == nil {
		return 0, false
	}
	return *c.opts.MinScore, true
}

// Send mails one digest with every posting. All postings share its outcome.
func (c *Channel) Send(ctx context.Context, postings []*posting.Posting) []notify.Outcome {
	if !c.enabled || len(postings) == 0 {
		return nil
	}

	msg, err := c.compose(postings)
	if err != nil {
		c.logger.Error("failed to compose digest", zap.Error(err))
		return notify.Failed(postings, err.Error())
	}

	addr := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
	auth := smtp.PlainAuth("", c.opts.Username, c.opts.Password, c.opts.Host)

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	if err := sendMail(ctx, addr, auth, c.opts.From, []string{c.opts.To}, msg); err != nil {
		c.logger.Error("failed to send email", zap.String("to", c.opts.To), zap.Error(err))
		return notify.Failed(postings, err.Error())
	}

	c.logger.Info("sent digest email", zap.Int("postings", len(postings)), zap.String("to", c.opts.To))
	return notify.Succeeded(postings)
}

// deliver runs the SMTP exchange of smtp.SendMail on a connection bound to
// ctx. The connection deadline follows ctx and cancelling ctx closes it.
func deliver(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err = exchange(conn, host, auth, from, to, msg)
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("smtp %s: %w", addr, cerr)
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return fmt.Errorf("smtp %s: %w", addr, context.DeadlineExceeded)
	}
	return err
}

func exchange(conn net.Conn, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Subject is the digest subject line.
func Subject(n int) string {
	return fmt.Sprintf("jobradar: %d new matching posting(s)", n)
}

func (c *Channel) compose(postings []*posting.Posting) ([]byte, error) {
	var h mail.Header
	h.SetDate(c.now())
	h.SetSubject(Subject(len(postings)))
	h.SetAddressList("From", []*mail.Address{{Address: c.opts.From}})
	h.SetAddressList("To", []*mail.Address{{Address: c.opts.To}})

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	htmlBody, err := renderHTML(postings)
	if err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", renderText(postings)},
		{"text/html", htmlBody},
	}
	for _, part := range parts {
		var ph mail.InlineHeader
		ph.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		pw, err := w.CreatePart(ph)
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := pw.Close(); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func percent(score float64) string {
	return strconv.Itoa(int(score*100+0.5)) + "%"
}

func renderText(postings []*posting.Posting) string {
	var b strings.Builder
	b.WriteString(Subject(len(postings)))
	b.WriteString("\n\n")
	for _, p := range postings {
		fmt.Fprintf(&b, "- %s @ %s (%s) [%s]\n  %s\n\n", p.Title, p.Company, p.DisplayLocation(), percent(p.Score()), p.URL)
	}
	return b.String()
}

var digestTemplate = template.Must(template.New("digest").Parse(`<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width:600px; margin:0 auto;">
<h2 style="color:#2c3e50;">New Job Matches</h2>
<p>{{len .}} new posting(s) matching your profile:</p>
{{range .}}<div style="border:1px solid #ddd; border-left:4px solid {{.Color}}; padding:12px; margin:8px 0; border-radius:4px;">
<h3 style="margin:0 0 4px 0;"><a href="{{.URL}}" style="color:#2c3e50; text-decoration:none;">{{.Title}}</a></h3>
<p style="margin:0 0 8px 0; color:#7f8c8d;">{{.Company}} &bull; {{.Location}} &bull; Score: {{.Score}}</p>
<p style="margin:0; font-size:0.9em; color:#555;">Source: {{.Source}}{{if .Reasoning}} &bull; {{.Reasoning}}{{end}}</p>
</div>
{{end}}<hr style="border:none; border-top:1px solid #eee; margin:20px 0;">
<p style="font-size:0.8em; color:#95a5a6;">Sent by jobradar</p>
</body>
</html>
`))

type card struct {
	Title     string
	URL       string
	Company   string
	Location  string
	Score     string
	Source    string
	Reasoning string
	Color     template.CSS
}

func cardColor(score float64) template.CSS {
	switch {
	case score >= 0.7:
		return "#2ecc71"
	case score >= 0.4:
		return "#f39c12"
	default:
		return "#e74c3c"
	}
}

func renderHTML(postings []*posting.Posting) (string, error) {
	cards := make([]card, 0, len(postings))
	for _, p := range postings {
		cards = append(cards, card{
			Title:     p.Title,
			URL:       p.URL,
			Company:   p.Company,
			Location:  p.DisplayLocation(),
			Score:     percent(p.Score()),
			Source:    p.Source,
			Reasoning: utils.TruncateForLog(p.ScoreReasoning, reasoningPreview),
			Color:     cardColor(p.Score()),
		})
	}

	var b strings.Builder
	if err := digestTemplate.Execute(&b, cards); err != nil {
		return "", err
	}
	return b.String(), nil
}
