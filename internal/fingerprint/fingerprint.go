// Package fingerprint derives the identity hashes used to deduplicate postings.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// URL returns the primary dedup key of a posting link. Trailing slashes,
// query strings, fragments and letter case do not change the result.
func URL(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	if i := strings.Index(u, "#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	return digest(strings.ToLower(u))
}

// TitleCompany returns the soft cross-source dedup signal.
func TitleCompany(title, company string) string {
	return digest(Normalize(title) + "|" + Normalize(company))
}

// Normalize lowercases s, drops punctuation and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
