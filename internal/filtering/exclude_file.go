package filtering

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/fingerprint"
	"github.com/spigell/jobradar/internal/posting"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes postings listed in an exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, b *Batch) (Step, error) {
	initial := b.Len()
	if f.path == "" {
		return Step{Initial: initial, Dropped: 0, Left: b.Len()}, nil
	}

	hashes, err := readExcludedURLs(f.path)
	if err != nil {
		return Step{}, fmt.Errorf("getting excluded postings from file: %w", err)
	}

	removed := b.Exclude(func(p *posting.Posting) bool {
		_, ok := hashes[fingerprint.URL(p.URL)]
		return ok
	})
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding postings based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_postings", removed),
			zap.Int("postings_left", b.Len()),
		)
	}

	return Step{Initial: initial, Dropped: len(removed), Left: b.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

// readExcludedURLs returns the URL fingerprints of the file. Blank lines and
// lines starting with # are ignored. A missing file excludes nothing.
func readExcludedURLs(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hashes := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hashes[fingerprint.URL(line)] = struct{}{}
	}
	return hashes, scanner.Err()
}

// AppendExcluded adds URLs to the exclude file, creating it when missing.
// URLs already present in the file are skipped.
func AppendExcluded(path string, urls []string) (int, error) {
	known, err := readExcludedURLs(path)
	if err != nil {
		return 0, fmt.Errorf("reading exclude file: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening exclude file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	added := 0
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		hash := fingerprint.URL(u)
		if _, ok := known[hash]; ok {
			continue
		}
		if known == nil {
			known = make(map[string]struct{})
		}
		known[hash] = struct{}{}
		if _, err := w.WriteString(u + "\n"); err != nil {
			return added, err
		}
		added++
	}
	return added, w.Flush()
}
