package email

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/spigell/jobradar/internal/notify"
	"github.com/spigell/jobradar/internal/posting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func stubSendMail(t *testing.T, err error) *capturedMail {
	t.Helper()
	captured := &capturedMail{}
	orig := sendMail
	sendMail = func(_ context.Context, addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = msg
		return err
	}
	t.Cleanup(func() { sendMail = orig })
	return captured
}

func validOptions() Options {
	return Options{
		Enabled:  true,
		Host:     "smtp.example.com",
		Port:     2525,
		Username: "bot",
		Password: "secret",
		From:     "bot@example.com",
		To:       "me@example.com",
	}
}

func digestPostings() []*posting.Posting {
	return []*posting.Posting{
		{ID: 1, Title: "Level Designer", Company: "Acme", URL: "https://jobs.example.com/1", Source: "greenhouse", Location: "Boston, MA", CombinedScore: posting.Float(0.82), ScoreReasoning: "AI: strong fit"},
		{ID: 2, Title: "Game Designer <Live>", Company: "Beta", URL: "https://jobs.example.com/2", Source: "lever", IsRemote: true, CombinedScore: posting.Float(0.55)},
	}
}

func TestSendComposesDigest(t *testing.T) {
	captured := stubSendMail(t, nil)
	c := New(validOptions(), zap.NewNop())
	c.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }

	outcomes := c.Send(context.Background(), digestPostings())
	if len(outcomes) != 2 || !outcomes[0].Success || !outcomes[1].Success {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
	if captured.addr != "smtp.example.com:2525" || captured.from != "bot@example.com" || captured.to[0] != "me@example.com" {
		t.Fatalf("unexpected envelope: %+v", captured)
	}

	r, err := mail.CreateReader(bytes.NewReader(captured.msg))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	subject, err := r.Header.Subject()
	if err != nil || subject != "jobradar: 2 new matching posting(s)" {
		t.Fatalf("unexpected subject %q: %v", subject, err)
	}

	bodies := map[string]string{}
	for {
		part, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		data, _ := io.ReadAll(part.Body)
		bodies[ct] = string(data)
	}

	plain := bodies["text/plain"]
	if !strings.Contains(plain, "- Level Designer @ Acme (Boston, MA) [82%]") || !strings.Contains(plain, "(Remote) [55%]") {
		t.Fatalf("unexpected plain body:\n%s", plain)
	}
	html := bodies["text/html"]
	if !strings.Contains(html, "#2ecc71") || !strings.Contains(html, "#f39c12") {
		t.Fatalf("expected score colours in html body:\n%s", html)
	}
	if !strings.Contains(html, "Game Designer &lt;Live&gt;") {
		t.Fatalf("expected escaped title in html body:\n%s", html)
	}
}

func TestSendFailureMarksEveryPosting(t *testing.T) {
	stubSendMail(t, errors.New("535 authentication failed"))
	outcomes := New(validOptions(), zap.NewNop()).Send(context.Background(), digestPostings())

	for _, o := range outcomes {
		if o.Success || !strings.Contains(o.Error, "authentication failed") {
			t.Fatalf("unexpected outcome: %+v", o)
		}
	}
}

func TestIncompleteCredentialsDisableChannel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	opts := validOptions()
	opts.Password = ""

	c := New(opts, zap.New(core))
	if c.IsAvailable() {
		t.Fatal("expected channel to be disabled")
	}
	if logs.FilterMessage("email notifications enabled but credentials incomplete").Len() != 1 {
		t.Fatalf("expected warning, got %v", logs.All())
	}
	if got := c.Send(context.Background(), digestPostings()); got != nil {
		t.Fatalf("expected no outcomes, got %v", got)
	}
}

func TestDefaults(t *testing.T) {
	c := New(Options{}, nil)
	if c.opts.Host != defaultHost || c.opts.Port != defaultPort {
		t.Fatalf("unexpected defaults: %+v", c.opts)
	}
	if _, ok := c.MinScore(); ok {
		t.Fatal("expected email to use the dispatcher threshold")
	}
}

func TestSendGivesUpOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	t.Cleanup(func() {
		select {
		case conn := <-accepted:
			conn.Close()
		default:
		}
	})

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	opts := validOptions()
	opts.Host = host
	opts.Port, _ = strconv.Atoi(port)
	opts.Timeout = 5 * time.Second
	ch := New(opts, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan []notify.Outcome, 1)
	go func() {
		done <- ch.Send(ctx, []*posting.Posting{{ID: 1, Title: "Level Designer", URL: "https://jobs.example.com/1", CombinedScore: posting.Float(0.8)}})
	}()

	select {
	case outcomes := <-done:
		if len(outcomes) != 1 || outcomes[0].Success {
			t.Fatalf("expected one failed outcome, got %+v", outcomes)
		}
		if !strings.Contains(outcomes[0].Error, "deadline exceeded") {
			t.Fatalf("expected deadline error, got %q", outcomes[0].Error)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Send did not return after the context deadline")
	}
}

func TestSendTimeoutBoundsExchange(t *testing.T) {
	var deadline time.Time
	orig := sendMail
	sendMail = func(ctx context.Context, _ string, _ smtp.Auth, _ string, _ []string, _ []byte) error {
		deadline, _ = ctx.Deadline()
		return nil
	}
	t.Cleanup(func() { sendMail = orig })

	opts := validOptions()
	opts.Timeout = time.Minute
	start := time.Now()
	New(opts, zap.NewNop()).Send(context.Background(), []*posting.Posting{{ID: 1, URL: "https://jobs.example.com/1"}})

	if deadline.IsZero() || deadline.After(start.Add(time.Minute+time.Second)) {
		t.Fatalf("expected exchange deadline within a minute, got %v", deadline)
	}
}
