package scoring

import (
	"sort"
	"strings"
)

// Keyword is a lowercase marker and its weight.
type Keyword struct {
	Term   string  `yaml:"term" mapstructure:"term"`
	Weight float64 `yaml:"weight" mapstructure:"weight"`
}

// KeywordTables holds the weighted markers the keyword scorer scans for.
type KeywordTables struct {
	Titles    []Keyword `yaml:"titles" mapstructure:"titles"`
	Seniority []Keyword `yaml:"seniority" mapstructure:"seniority"`
	Skills    []Keyword `yaml:"skills" mapstructure:"skills"`
}

// DefaultTables are tuned for level and world design roles in games.
func DefaultTables() KeywordTables {
	return KeywordTables{
		Titles: []Keyword{
			{"senior level designer", 1.0},
			{"lead level designer", 1.0},
			{"principal level designer", 1.0},
			{"level designer", 1.0},
			{"senior world designer", 1.0},
			{"lead world designer", 1.0},
			{"world designer", 1.0},
			{"environment designer", 0.85},
			{"technical level designer", 0.85},
			{"technical designer", 0.6},
			{"game designer", 0.55},
			{"content designer", 0.5},
			{"quest designer", 0.45},
			{"encounter designer", 0.45},
			{"narrative designer", 0.3},
			{"systems designer", 0.3},
			{"combat designer", 0.6},
			{"multiplayer designer", 0.5},
		},
		Seniority: []Keyword{
			{"principal", 1.0},
			{"staff", 0.95},
			{"senior", 1.0},
			{"lead", 1.0},
			{"sr.", 1.0},
			{"sr ", 1.0},
			{"director", 0.7},
			{"manager", 0.5},
			{"mid", 0.5},
			{"ii", 0.5},
			{"iii", 0.8},
			{"junior", 0.1},
			{"jr.", 0.1},
			{"jr ", 0.1},
			{"entry", 0.05},
			{"intern", 0.0},
			{"associate", 0.2},
		},
		Skills: []Keyword{
			{"unreal engine", 1.0},
			{"unreal", 0.9},
			{"ue5", 1.0},
			{"ue4", 0.9},
			{"blueprints", 0.8},
			{"pcg", 0.7},
			{"procedural content generation", 0.8},
			{"open world", 0.9},
			{"open-world", 0.9},
			{"encounter design", 0.9},
			{"level blockout", 0.9},
			{"blockout", 0.8},
			{"greybox", 0.8},
			{"whitebox", 0.8},
			{"environmental storytelling", 0.85},
			{"combat design", 0.8},
			{"combat space", 0.85},
			{"player flow", 0.8},
			{"metrics", 0.5},
			{"readability", 0.6},
			{"dungeon", 0.8},
			{"mmo", 0.7},
			{"mmorpg", 0.75},
			{"rpg", 0.7},
			{"live service", 0.6},
			{"live-service", 0.6},
			{"pvp", 0.6},
			{"multiplayer", 0.5},
			{"narrative", 0.4},
			{"aaa", 0.7},
			{"lua", 0.5},
			{"python", 0.4},
			{"c#", 0.4},
			{"perforce", 0.4},
			{"jira", 0.3},
		},
	}
}

// merge fills empty tables of t from the defaults and normalises terms.
func (t KeywordTables) merge(defaults KeywordTables) KeywordTables {
	out := KeywordTables{
		Titles:    pick(t.Titles, defaults.Titles),
		Seniority: pick(t.Seniority, defaults.Seniority),
		Skills:    pick(t.Skills, defaults.Skills),
	}
	// Longer title terms first so ties resolve to the most specific match.
	sort.SliceStable(out.Titles, func(i, j int) bool {
		return len(out.Titles[i].Term) > len(out.Titles[j].Term)
	})
	return out
}

func pick(custom, fallback []Keyword) []Keyword {
	src := fallback
	if len(custom) > 0 {
		src = custom
	}
	out := make([]Keyword, 0, len(src))
	for _, k := range src {
		term := strings.ToLower(k.Term)
		if strings.TrimSpace(term) == "" {
			continue
		}
		out = append(out, Keyword{Term: term, Weight: k.Weight})
	}
	return out
}
