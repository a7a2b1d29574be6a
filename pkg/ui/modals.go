package ui

import (
	"sort"
	"sync"
)

// Modal names.
const (
	ModalInventory    = "inventory"
	ModalSettings     = "settings"
	ModalAchievements = "achievements"
	ModalSaves        = "saves"
	ModalHelp         = "help"
)

// Modals tracks which dialogs are open. Unknown names are ignored.
type Modals struct {
	mu   sync.Mutex
	open map[string]bool
}

// NewModals returns a set with every modal closed.
func NewModals() *Modals {
	return &Modals{open: map[string]bool{
		ModalInventory:    false,
		ModalSettings:     false,
		ModalAchievements: false,
		ModalSaves:        false,
		ModalHelp:         false,
	}}
}

func (m *Modals) set(name string, fn func(bool) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.open[name]; ok {
		m.open[name] = fn(cur)
	}
}

// Open shows a modal.
func (m *Modals) Open(name string) { m.set(name, func(bool) bool { return true }) }

// Close hides a modal.
func (m *Modals) Close(name string) { m.set(name, func(bool) bool { return false }) }

// Toggle flips a modal.
func (m *Modals) Toggle(name string) { m.set(name, func(v bool) bool { return !v }) }

// CloseAll hides every modal.
func (m *Modals) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.open {
		m.open[k] = false
	}
}

// IsOpen reports whether name is shown.
func (m *Modals) IsOpen(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open[name]
}

// AnyOpen reports whether at least one modal is shown.
func (m *Modals) AnyOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.open {
		if v {
			return true
		}
	}
	return false
}

// OpenNames lists the shown modals in lexical order.
func (m *Modals) OpenNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k, v := range m.open {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
