package config

import "time"

// EntryType distinguishes how a configured source is captured.
type EntryType string

const (
	// EntryFile covers both single files and directories; the sync step
	// stats the source to pick the right copy invocation.
	EntryFile EntryType = ""
	// EntryGitRepo sources are captured as git bundles instead of being
	// mirrored file-by-file.
	EntryGitRepo EntryType = "git-repo"
)

// Entry is one configured source path to back up.
type Entry struct {
	Path           string    `yaml:"path"`
	Type           EntryType `yaml:"type"`
	Ignore         []string  `yaml:"ignore"`
	PreSyncCommand string    `yaml:"preSyncCommand"`
}

// TelegramConfig holds the notification bot credentials. Both fields empty
// means notifications are disabled.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// WatchConfig controls the optional source watcher in daemon mode.
type WatchConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Mode           string        `yaml:"mode"`           // "auto", "poll", "fsnotify"
	PollInterval   time.Duration `yaml:"pollInterval"`   // e.g. 30s
	DebounceWindow time.Duration `yaml:"debounceWindow"` // e.g. 5s
}

// DaemonConfig holds the in-process schedules for daemon mode. The cron
// expressions use the standard five-field syntax.
type DaemonConfig struct {
	CommitSchedule string      `yaml:"commitSchedule"` // commit-only runs, e.g. "0 * * * *"
	BundleSchedule string      `yaml:"bundleSchedule"` // full runs, e.g. "30 3 * * *"
	Watch          WatchConfig `yaml:"watch"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

type Config struct {
	Entries         []Entry        `yaml:"entries"`
	BundleDir       string         `yaml:"bundleDir"`
	NotifyOnSuccess bool           `yaml:"notifyOnSuccess"`
	Telegram        TelegramConfig `yaml:"telegram"`
	Daemon          DaemonConfig   `yaml:"daemon"`
	Logging         LoggingConfig  `yaml:"logging"`
}
