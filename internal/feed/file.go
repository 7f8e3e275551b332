package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/posting"
	"go.uber.org/zap"
)

// FileProducer reads records from a local export: a JSON array or one JSON
// object per line.
type FileProducer struct {
	name   string
	path   string
	logger *zap.Logger
}

func NewFileProducer(name, path string, log *zap.Logger) *FileProducer {
	return &FileProducer{name: name, path: path, logger: logger.OrNop(log).Named("feed").With(zap.String(logger.FieldSource, name))}
}

func (f *FileProducer) Name() string { return f.name }

func (f *FileProducer) IsAvailable() bool {
	if f.path == "" {
		return false
	}
	_, err := os.Stat(f.path)
	return err == nil
}

// Fetch returns the records matching the query text and location.
func (f *FileProducer) Fetch(ctx context.Context, q Query) ([]*posting.Posting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	items, err := parseItems(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}

	postings, skipped, err := Decode(items, f.name)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if skipped > 0 {
		f.logger.Warn("skipped records without title or url", zap.Int("count", skipped))
	}

	out := postings[:0]
	for _, p := range postings {
		if matches(p, q) {
			out = append(out, p)
		}
	}
	f.logger.Debug("file records matched", zap.Stringer("query", q), zap.Int("matched", len(out)), zap.Int("total", len(postings)))

	return out, nil
}

func parseItems(data []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var items []Item
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var item Item
		if err := json.Unmarshal(text, &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, scanner.Err()
}

// matches applies the query the way a search endpoint would: every word of
// the text must appear in the title or description.
func matches(p *posting.Posting, q Query) bool {
	haystack := strings.ToLower(p.Title + " " + p.Description)
	for _, word := range strings.Fields(strings.ToLower(q.Text)) {
		if !strings.Contains(haystack, word) {
			return false
		}
	}

	switch {
	case q.Location == "":
		return true
	case q.Remote():
		return p.IsRemote
	default:
		return strings.Contains(strings.ToLower(p.Location), strings.ToLower(strings.TrimSpace(q.Location)))
	}
}
