package scoring

import (
	"fmt"
	"strings"
)

// Profile describes the candidate postings are matched against.
type Profile struct {
	Title           string              `yaml:"title" mapstructure:"title"`
	ExperienceYears int                 `yaml:"experience_years" mapstructure:"experience_years"`
	Industries      []string            `yaml:"industries" mapstructure:"industries"`
	CoreSkills      []string            `yaml:"core_skills" mapstructure:"core_skills"`
	TechnicalSkills []string            `yaml:"technical_skills" mapstructure:"technical_skills"`
	PreferredTitles TitlePreferences    `yaml:"preferred_titles" mapstructure:"preferred_titles"`
	Locations       LocationPreferences `yaml:"locations" mapstructure:"locations"`
	NotableTitles   []string            `yaml:"notable_titles" mapstructure:"notable_titles"`

	// Keywords replaces individual built-in keyword tables when set.
	Keywords KeywordTables `yaml:"keywords" mapstructure:"keywords"`
}

type TitlePreferences struct {
	HighMatch   []string `yaml:"high_match" mapstructure:"high_match"`
	MediumMatch []string `yaml:"medium_match" mapstructure:"medium_match"`
	LowMatch    []string `yaml:"low_match" mapstructure:"low_match"`
}

type LocationPreferences struct {
	Preferred  []string `yaml:"preferred" mapstructure:"preferred"`
	Acceptable []string `yaml:"acceptable" mapstructure:"acceptable"`
}

// Skills returns core and technical skills together.
func (p Profile) Skills() []string {
	out := make([]string, 0, len(p.CoreSkills)+len(p.TechnicalSkills))
	out = append(out, p.CoreSkills...)
	return append(out, p.TechnicalSkills...)
}

// PromptText formats the profile for an LLM prompt.
func (p Profile) PromptText() string {
	lines := []string{
		"Title: " + p.Title,
		fmt.Sprintf("Experience: %d+ years", p.ExperienceYears),
		"Industries: " + strings.Join(p.Industries, ", "),
		"Core skills: " + strings.Join(p.CoreSkills, ", "),
		"Technical skills: " + strings.Join(p.TechnicalSkills, ", "),
		"Preferred titles: " + strings.Join(p.PreferredTitles.HighMatch, ", "),
		"Acceptable titles: " + strings.Join(p.PreferredTitles.MediumMatch, ", "),
		"Preferred locations: " + strings.Join(p.Locations.Preferred, ", "),
		"Notable shipped titles: " + strings.Join(p.NotableTitles, ", "),
	}
	return strings.Join(lines, "\n")
}
