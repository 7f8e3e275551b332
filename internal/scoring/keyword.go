package scoring

import (
	"fmt"
	"sort"
	"strings"
)

const (
	titleWeight     = 0.35
	seniorityWeight = 0.20
	skillsWeight    = 0.30
	locationWeight  = 0.15

	defaultSeniority  = 0.5
	seniorityScanLen  = 500
	maxSkillsAveraged = 10
	breadthPerMatch   = 0.02
	maxBreadthBonus   = 0.2
	noDescription     = 0.3
	noSkillMatches    = 0.1

	locationRemote     = 1.0
	locationUnknown    = 0.5
	locationPreferred  = 1.0
	locationAcceptable = 0.7
	locationOther      = 0.2
)

// Breakdown holds the keyword sub-scores of one posting.
type Breakdown struct {
	Title     float64 `json:"title"`
	Seniority float64 `json:"seniority"`
	Skills    float64 `json:"skills"`
	Location  float64 `json:"location"`
	Total     float64 `json:"total"`
}

func (b Breakdown) String() string {
	return fmt.Sprintf("Title: %.2f, Seniority: %.2f, Skills: %.2f, Location: %.2f",
		b.Title, b.Seniority, b.Skills, b.Location)
}

// KeywordScorer is a pure, deterministic rule-based scorer.
type KeywordScorer struct {
	tables     KeywordTables
	preferred  []string
	acceptable []string
}

// NewKeywordScorer builds a scorer from the profile's locations and keyword
// tables, falling back to DefaultTables.
func NewKeywordScorer(p Profile) *KeywordScorer {
	return &KeywordScorer{
		tables:     p.Keywords.merge(DefaultTables()),
		preferred:  lowerAll(p.Locations.Preferred),
		acceptable: lowerAll(p.Locations.Acceptable),
	}
}

// Score returns the weighted keyword score and its reasoning line.
func (k *KeywordScorer) Score(title, description, location string, isRemote bool) (float64, string) {
	b := k.Breakdown(title, description, location, isRemote)
	return b.Total, b.String()
}

// Breakdown computes every sub-score.
func (k *KeywordScorer) Breakdown(title, description, location string, isRemote bool) Breakdown {
	b := Breakdown{
		Title:     k.title(title),
		Seniority: k.seniority(title, description),
		Skills:    k.skills(description),
		Location:  k.location(location, isRemote),
	}
	b.Total = clamp(b.Title*titleWeight + b.Seniority*seniorityWeight + b.Skills*skillsWeight + b.Location*locationWeight)
	return b
}

func (k *KeywordScorer) title(title string) float64 {
	lower := strings.ToLower(title)
	best := 0.0
	for _, kw := range k.tables.Titles {
		if strings.Contains(lower, kw.Term) && kw.Weight > best {
			best = kw.Weight
		}
	}
	return best
}

func (k *KeywordScorer) seniority(title, description string) float64 {
	head := []rune(description)
	if len(head) > seniorityScanLen {
		head = head[:seniorityScanLen]
	}
	text := strings.ToLower(title + " " + string(head))

	best := defaultSeniority
	for _, kw := range k.tables.Seniority {
		if strings.Contains(text, kw.Term) && kw.Weight > best {
			best = kw.Weight
		}
	}
	return best
}

func (k *KeywordScorer) skills(description string) float64 {
	if description == "" {
		return noDescription
	}

	lower := strings.ToLower(description)
	var matched []float64
	for _, kw := range k.tables.Skills {
		if strings.Contains(lower, kw.Term) {
			matched = append(matched, kw.Weight)
		}
	}
	if len(matched) == 0 {
		return noSkillMatches
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(matched)))
	top := matched
	if len(top) > maxSkillsAveraged {
		top = top[:maxSkillsAveraged]
	}

	sum := 0.0
	for _, w := range top {
		sum += w
	}
	bonus := min(maxBreadthBonus, float64(len(matched))*breadthPerMatch)

	return min(1.0, sum/float64(len(top))+bonus)
}

func (k *KeywordScorer) location(location string, isRemote bool) float64 {
	if isRemote {
		return locationRemote
	}
	if location == "" {
		return locationUnknown
	}

	lower := strings.ToLower(location)
	if overlaps(lower, k.preferred) {
		return locationPreferred
	}
	if overlaps(lower, k.acceptable) {
		return locationAcceptable
	}
	return locationOther
}

func overlaps(location string, candidates []string) bool {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if strings.Contains(location, c) || strings.Contains(c, location) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
