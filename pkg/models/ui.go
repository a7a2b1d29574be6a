package models

import "time"

// NotificationType is the severity of a UI notification.
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// Notification is a timed UI message.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Active    bool             `json:"active"`
	Timestamp time.Time        `json:"timestamp"`
}

// Text sizes accepted by UISettings.
const (
	TextSmall  = "small"
	TextMedium = "medium"
	TextLarge  = "large"
)

// Preferences is the nested settings object of the UI blob.
type Preferences struct {
	TextSize          string `json:"textSize"`
	AnimationsEnabled bool   `json:"animationsEnabled"`
	AutoSaveEnabled   bool   `json:"autoSaveEnabled"`
	// AutoSaveInterval is in milliseconds.
	AutoSaveInterval int64  `json:"autoSaveInterval"`
	ShowTutorial     bool   `json:"showTutorial"`
	Language         string `json:"language"`
}

// AutoSavePeriod returns the interval as a duration.
func (p Preferences) AutoSavePeriod() time.Duration {
	return time.Duration(p.AutoSaveInterval) * time.Millisecond
}

// UISettings is persisted under starCourierUiSettings.
type UISettings struct {
	IsDarkMode   bool        `json:"isDarkMode"`
	SidebarOpen  bool        `json:"sidebarOpen"`
	SoundEnabled bool        `json:"soundEnabled"`
	MusicEnabled bool        `json:"musicEnabled"`
	Settings     Preferences `json:"settings"`
}

// DefaultUISettings returns the factory settings.
func DefaultUISettings() UISettings {
	return UISettings{
		IsDarkMode:   true,
		SidebarOpen:  true,
		SoundEnabled: true,
		MusicEnabled: true,
		Settings: Preferences{
			TextSize:          TextMedium,
			AnimationsEnabled: true,
			AutoSaveEnabled:   true,
			AutoSaveInterval:  int64((5 * time.Minute) / time.Millisecond),
			ShowTutorial:      true,
			Language:          "ru",
		},
	}
}
