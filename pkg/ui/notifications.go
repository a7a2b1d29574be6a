// Package ui keeps the presentation-independent UI state: timed
// notifications, modal visibility and the persisted settings blob.
package ui

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starcourier/starcourier/pkg/models"
)

// Default display durations. Zero means the notification stays until removed.
const (
	InfoDuration        = 3 * time.Second
	SuccessDuration     = 3 * time.Second
	WarningDuration     = 5 * time.Second
	ErrorDuration       = 0
	AchievementDuration = 5 * time.Second
)

// Notifications is the list of messages shown to the player.
type Notifications struct {
	mu     sync.Mutex
	items  []models.Notification
	timers map[string]*time.Timer
	now    func() time.Time

	subMu   sync.Mutex
	subs    map[int]func(models.Notification)
	nextSub int
}

// NewNotifications returns an empty list.
func NewNotifications() *Notifications {
	return &Notifications{
		timers: make(map[string]*time.Timer),
		now:    time.Now,
		subs:   make(map[int]func(models.Notification)),
	}
}

// Subscribe registers fn for additions and removals. Removed notifications
// are delivered with Active set to false.
func (n *Notifications) Subscribe(fn func(models.Notification)) func() {
	n.subMu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.subMu.Unlock()
	return func() {
		n.subMu.Lock()
		delete(n.subs, id)
		n.subMu.Unlock()
	}
}

func (n *Notifications) publish(item models.Notification) {
	n.subMu.Lock()
	fns := make([]func(models.Notification), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.subMu.Unlock()
	for _, fn := range fns {
		fn(item)
	}
}

// Add shows message and returns its id. A positive duration removes it
// automatically; zero keeps it until Remove or Clear.
func (n *Notifications) Add(message string, typ models.NotificationType, duration time.Duration) string {
	if typ == "" {
		typ = models.NotifyInfo
	}
	item := models.Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Type:      typ,
		Active:    true,
		Timestamp: n.now(),
	}

	n.mu.Lock()
	n.items = append(n.items, item)
	if duration > 0 {
		id := item.ID
		n.timers[id] = time.AfterFunc(duration, func() { n.Remove(id) })
	}
	n.mu.Unlock()

	log.Printf("ui: notification (%s): %s", typ, message)
	n.publish(item)
	return item.ID
}

// Remove drops a notification. Unknown ids are ignored.
func (n *Notifications) Remove(id string) {
	n.mu.Lock()
	if t, ok := n.timers[id]; ok {
		t.Stop()
		delete(n.timers, id)
	}
	var removed *models.Notification
	for i := range n.items {
		if n.items[i].ID == id {
			item := n.items[i]
			item.Active = false
			removed = &item
			n.items = append(n.items[:i], n.items[i+1:]...)
			break
		}
	}
	n.mu.Unlock()

	if removed != nil {
		n.publish(*removed)
	}
}

// Clear drops every notification.
func (n *Notifications) Clear() {
	n.mu.Lock()
	for id, t := range n.timers {
		t.Stop()
		delete(n.timers, id)
	}
	n.items = nil
	n.mu.Unlock()
}

// Active returns the notifications currently shown, oldest first.
func (n *Notifications) Active() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.Notification, 0, len(n.items))
	for _, item := range n.items {
		if item.Active {
			out = append(out, item)
		}
	}
	return out
}

// Info shows an informational message for InfoDuration.
func (n *Notifications) Info(message string) string {
	return n.Add(message, models.NotifyInfo, InfoDuration)
}

// Success shows a success message for SuccessDuration.
func (n *Notifications) Success(message string) string {
	return n.Add(message, models.NotifySuccess, SuccessDuration)
}

// Warning shows a warning for WarningDuration.
func (n *Notifications) Warning(message string) string {
	return n.Add(message, models.NotifyWarning, WarningDuration)
}

// Error shows an error until it is dismissed.
func (n *Notifications) Error(message string) string {
	return n.Add(message, models.NotifyError, ErrorDuration)
}

// NetworkError shows a connectivity error until it is dismissed.
func (n *Notifications) NetworkError(message string) string {
	return n.Add("Network: "+message, models.NotifyError, ErrorDuration)
}

// Achievement announces an unlocked achievement.
func (n *Notifications) Achievement(title, description string) string {
	return n.Add("Achievement unlocked: "+title+": "+description, models.NotifySuccess, AchievementDuration)
}
