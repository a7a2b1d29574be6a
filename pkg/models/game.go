package models

import (
	"math"
	"sort"
	"time"
)

// StatName identifies one of the ten player gauges.
type StatName string

const (
	StatHealth    StatName = "health"
	StatMorale    StatName = "morale"
	StatKnowledge StatName = "knowledge"
	StatTeam      StatName = "team"
	StatDanger    StatName = "danger"
	StatSecurity  StatName = "security"
	StatFuel      StatName = "fuel"
	StatMoney     StatName = "money"
	StatPsychic   StatName = "psychic"
	StatTrust     StatName = "trust"
)

// AllStats lists every stat in display order.
var AllStats = []StatName{
	StatHealth, StatMorale, StatKnowledge, StatTeam, StatDanger,
	StatSecurity, StatFuel, StatMoney, StatPsychic, StatTrust,
}

// Gauge bounds. Money has no upper bound.
const (
	GaugeMin = 0
	GaugeMax = 100
)

// Valid reports whether n is one of the known stats.
func (n StatName) Valid() bool {
	for _, s := range AllStats {
		if s == n {
			return true
		}
	}
	return false
}

// Stats is the fixed-schema set of player gauges.
type Stats struct {
	Health    int `json:"health" yaml:"health"`
	Morale    int `json:"morale" yaml:"morale"`
	Knowledge int `json:"knowledge" yaml:"knowledge"`
	Team      int `json:"team" yaml:"team"`
	Danger    int `json:"danger" yaml:"danger"`
	Security  int `json:"security" yaml:"security"`
	Fuel      int `json:"fuel" yaml:"fuel"`
	Money     int `json:"money" yaml:"money"`
	Psychic   int `json:"psychic" yaml:"psychic"`
	Trust     int `json:"trust" yaml:"trust"`
}

// DefaultStats returns the gauges of a fresh play-through.
func DefaultStats() Stats {
	return Stats{
		Health:    100,
		Morale:    75,
		Knowledge: 30,
		Team:      50,
		Danger:    0,
		Security:  20,
		Fuel:      100,
		Money:     1000,
		Psychic:   0,
		Trust:     50,
	}
}

func (s *Stats) field(n StatName) *int {
	switch n {
	case StatHealth:
		return &s.Health
	case StatMorale:
		return &s.Morale
	case StatKnowledge:
		return &s.Knowledge
	case StatTeam:
		return &s.Team
	case StatDanger:
		return &s.Danger
	case StatSecurity:
		return &s.Security
	case StatFuel:
		return &s.Fuel
	case StatMoney:
		return &s.Money
	case StatPsychic:
		return &s.Psychic
	case StatTrust:
		return &s.Trust
	}
	return nil
}

// Get returns the value of a stat.
func (s Stats) Get(n StatName) (int, bool) {
	p := s.field(n)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set assigns a stat, clamped to its bounds. Unknown names are ignored.
func (s *Stats) Set(n StatName, v int) {
	p := s.field(n)
	if p == nil {
		return
	}
	*p = clampStat(n, v)
}

// Apply returns a copy of s with the deltas added and every touched gauge clamped.
func (s Stats) Apply(changes StatChanges) Stats {
	out := s
	for name, delta := range changes {
		cur, ok := out.Get(name)
		if !ok {
			continue
		}
		out.Set(name, cur+int(math.Round(delta)))
	}
	return out
}

// Merge overwrites the stats present in values, clamped.
func (s Stats) Merge(values map[StatName]int) Stats {
	out := s
	for name, v := range values {
		out.Set(name, v)
	}
	return out
}

// Map returns the stats keyed by name.
func (s Stats) Map() map[StatName]int {
	m := make(map[StatName]int, len(AllStats))
	for _, n := range AllStats {
		v, _ := s.Get(n)
		m[n] = v
	}
	return m
}

func clampStat(n StatName, v int) int {
	if v < GaugeMin {
		return GaugeMin
	}
	if n != StatMoney && v > GaugeMax {
		return GaugeMax
	}
	return v
}

// StatChanges is a delta map sent with a choice.
type StatChanges map[StatName]float64

// Relationships maps a character id to an affinity in [0,100].
type Relationships map[string]int

// DefaultRelationships returns the starting crew affinities.
func DefaultRelationships() Relationships {
	return Relationships{
		"sara_nova":      50,
		"grisha_romanov": 60,
		"li_zheng":       45,
	}
}

// Clone returns a clamped copy.
func (r Relationships) Clone() Relationships {
	out := make(Relationships, len(r))
	for k, v := range r {
		out[k] = clampAffinity(v)
	}
	return out
}

// Merge returns a copy with values overwritten, clamped.
func (r Relationships) Merge(values map[string]int) Relationships {
	out := r.Clone()
	for k, v := range values {
		out[k] = clampAffinity(v)
	}
	return out
}

func clampAffinity(v int) int {
	if v < GaugeMin {
		return GaugeMin
	}
	if v > GaugeMax {
		return GaugeMax
	}
	return v
}

// DefaultInventory returns the starting items.
func DefaultInventory() []string {
	return []string{"Code breaker", "Combat knife"}
}

// StartSceneID is the scene every play-through begins in.
const StartSceneID = "start"

// TotalScenes is the scene count used for progress reporting.
const TotalScenes = 15

// Choice is one option offered by a scene.
type Choice struct {
	Text       string         `json:"text"`
	Next       string         `json:"next"`
	Stats      map[string]int `json:"stats,omitempty"`
	Difficulty string         `json:"difficulty,omitempty"`
}

// Changes converts the choice's stat map into a StatChanges delta.
func (c Choice) Changes() StatChanges {
	out := make(StatChanges, len(c.Stats))
	for k, v := range c.Stats {
		out[StatName(k)] = float64(v)
	}
	return out
}

// Scene is a scene payload from the game service.
type Scene struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Text      string   `json:"text"`
	Image     string   `json:"image"`
	Character string   `json:"character"`
	Choices   []Choice `json:"choices"`
}

// Character is a crew member description.
type Character struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Relationship int    `json:"relationship"`
	Description  string `json:"description"`
}

// ChoiceRecord is one entry of the append-only choice history.
type ChoiceRecord struct {
	FromScene   string      `json:"fromScene"`
	ToScene     string      `json:"toScene"`
	StatChanges StatChanges `json:"statChanges"`
	Timestamp   time.Time   `json:"timestamp"`
}

// SortedScenes returns the members of a visited-scene set in lexical order.
func SortedScenes(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
