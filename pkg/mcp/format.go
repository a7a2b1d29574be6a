package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starcourier/starcourier/pkg/achievements"
	"github.com/starcourier/starcourier/pkg/game"
	"github.com/starcourier/starcourier/pkg/models"
)

// formatState renders the session as text.
func formatState(st game.State) string {
	if !st.Active {
		return "No game in progress."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Player: %s\n", st.PlayerID)
	fmt.Fprintf(&b, "Scene:  %s (%d choices made, %d%% progress)\n",
		st.CurrentSceneID, st.ChoicesMade, st.Progress())
	if st.IsGameOver() {
		reason := st.EndReason
		if reason == "" {
			reason = "the crew can go no further"
		}
		fmt.Fprintf(&b, "GAME OVER: %s\n", reason)
	}
	if st.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", st.Error)
	}

	if sc := st.CurrentScene; sc != nil {
		b.WriteString("\n")
		if sc.Title != "" {
			b.WriteString(sc.Title + "\n")
		}
		if sc.Text != "" {
			b.WriteString(sc.Text + "\n")
		}
		for i, c := range sc.Choices {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, c.Text)
		}
	}

	b.WriteString("\nStats\n")
	b.WriteString(strings.Repeat("-", 24) + "\n")
	values := st.Stats.Map()
	for _, n := range models.AllStats {
		fmt.Fprintf(&b, "  %-10s %5d\n", n, values[n])
	}

	if len(st.Relationships) > 0 {
		b.WriteString("\nCrew\n")
		b.WriteString(strings.Repeat("-", 24) + "\n")
		ids := make([]string, 0, len(st.Relationships))
		for id := range st.Relationships {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "  %-16s %3d\n", id, st.Relationships[id])
		}
	}
	return b.String()
}

// formatSaves formats saves as a text table.
func formatSaves(saves []models.SaveRecord) string {
	if len(saves) == 0 {
		return "No saves found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-20s %-20s %-12s %7s\n",
		"ID", "Name", "Saved", "Scene", "Choices")
	b.WriteString(strings.Repeat("-", 99) + "\n")
	for _, s := range saves {
		name := s.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(&b, "%-36s %-20s %-20s %-12s %7d\n",
			s.ID, name,
			s.CreatedAt.Format("2006-01-02 15:04:05"),
			s.CurrentSceneID, s.ChoicesMade)
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d/%d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Capacity, stats.Hits, stats.Misses, stats.HitRate()*100)
}

// formatAchievements lists achievements; locked secret ones stay hidden.
func formatAchievements(all []achievements.Achievement, pct int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Achievements (%d%% complete)\n", pct)
	for _, a := range all {
		mark := " "
		if a.Unlocked {
			mark = "x"
		}
		title, desc := a.Title, a.Description
		if a.Secret && !a.Unlocked {
			title, desc = "???", "Secret achievement"
		}
		fmt.Fprintf(&b, "  [%s] %-16s %s", mark, title, desc)
		if a.Target > 0 && !a.Unlocked {
			fmt.Fprintf(&b, " (%d/%d)", a.Progress, a.Target)
		}
		b.WriteString("\n")
	}
	return b.String()
}
