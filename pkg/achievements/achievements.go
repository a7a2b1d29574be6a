// Package achievements unlocks milestones from session events.
package achievements

import (
	"math"
	"sort"
	"sync"

	"github.com/starcourier/starcourier/pkg/game"
)

// Achievement ids.
const (
	FirstChoice   = "first_choice"
	Explorer      = "explorer"
	Survivor      = "survivor"
	RichCourier   = "rich_courier"
	TrustedFriend = "trusted_friend"
)

// Achievement describes one milestone. Target is zero for one-shot ones.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Secret      bool   `json:"secret"`
	Target      int    `json:"target,omitempty"`
	Progress    int    `json:"progress,omitempty"`
	Unlocked    bool   `json:"unlocked"`
}

func catalog() map[string]*Achievement {
	return map[string]*Achievement{
		FirstChoice:   {ID: FirstChoice, Title: "First choice", Description: "Make your first choice"},
		Explorer:      {ID: Explorer, Title: "Explorer", Description: "Visit 5 different scenes", Target: 5},
		Survivor:      {ID: Survivor, Title: "Survivor", Description: "Survive with 20% health or less", Secret: true},
		RichCourier:   {ID: RichCourier, Title: "Rich courier", Description: "Collect 5000 credits", Target: 5000},
		TrustedFriend: {ID: TrustedFriend, Title: "Trusted friend", Description: "Reach full trust with any crew member"},
	}
}

// Tracker holds unlock state for one player.
type Tracker struct {
	mu       sync.Mutex
	items    map[string]*Achievement
	onUnlock func(Achievement)
}

// NewTracker returns a tracker with nothing unlocked. onUnlock may be nil.
func NewTracker(onUnlock func(Achievement)) *Tracker {
	return &Tracker{items: catalog(), onUnlock: onUnlock}
}

// Attach evaluates every choice and load event of session. The returned
// function detaches the tracker.
func (t *Tracker) Attach(session *game.Session) func() {
	return session.Subscribe(func(ev game.Event) {
		switch ev.Type {
		case game.EventChoice, game.EventLoaded:
			t.Check(ev.State)
		}
	})
}

// Check evaluates st and returns the achievements it unlocked.
func (t *Tracker) Check(st game.State) []Achievement {
	t.mu.Lock()
	var unlocked []Achievement
	if st.ChoicesMade == 1 {
		unlocked = t.unlockLocked(FirstChoice, unlocked)
	}
	if st.Stats.Health > 0 && st.Stats.Health <= 20 {
		unlocked = t.unlockLocked(Survivor, unlocked)
	}
	unlocked = t.progressLocked(RichCourier, st.Stats.Money, unlocked)
	unlocked = t.progressLocked(Explorer, len(st.VisitedScenes), unlocked)
	for _, v := range st.Relationships {
		if v >= 100 {
			unlocked = t.unlockLocked(TrustedFriend, unlocked)
			break
		}
	}
	t.mu.Unlock()

	if t.onUnlock != nil {
		for _, a := range unlocked {
			t.onUnlock(a)
		}
	}
	return unlocked
}

func (t *Tracker) unlockLocked(id string, acc []Achievement) []Achievement {
	a := t.items[id]
	if a == nil || a.Unlocked {
		return acc
	}
	a.Unlocked = true
	return append(acc, *a)
}

func (t *Tracker) progressLocked(id string, value int, acc []Achievement) []Achievement {
	a := t.items[id]
	if a == nil {
		return acc
	}
	a.Progress = value
	if value >= a.Target {
		return t.unlockLocked(id, acc)
	}
	return acc
}

// Unlock marks id unlocked and reports whether it was newly unlocked.
func (t *Tracker) Unlock(id string) bool {
	t.mu.Lock()
	got := t.unlockLocked(id, nil)
	t.mu.Unlock()
	if len(got) == 0 {
		return false
	}
	if t.onUnlock != nil {
		t.onUnlock(got[0])
	}
	return true
}

// All returns every achievement ordered by id.
func (t *Tracker) All() []Achievement {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Achievement, 0, len(t.items))
	for _, a := range t.items {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Unlocked returns the unlocked achievements ordered by id.
func (t *Tracker) Unlocked() []Achievement {
	var out []Achievement
	for _, a := range t.All() {
		if a.Unlocked {
			out = append(out, a)
		}
	}
	return out
}

// CompletionPercentage is the rounded share of unlocked achievements.
func (t *Tracker) CompletionPercentage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, a := range t.items {
		if a.Unlocked {
			n++
		}
	}
	return int(math.Round(float64(n) / float64(len(t.items)) * 100))
}
