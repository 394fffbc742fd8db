package config

import (
	"time"
)

// Defaults for the editor session knobs.
const (
	DefaultAutosaveInterval = 3 * time.Second
	DefaultPollInterval     = 1 * time.Second
	DefaultHistoryLimit     = 100
	DefaultLayoutDirection  = "LR"
	DefaultLayerGap         = 120.0
	DefaultNodeGap          = 60.0
	DefaultGroupPadding     = 25.0
)

// Settings are the typed editor session knobs.
type Settings struct {
	// AutosaveInterval is the trailing-debounce idle window before
	// edits flush to persistence.
	AutosaveInterval time.Duration

	// PollInterval is the run-status polling period.
	PollInterval time.Duration

	// HistoryLimit caps the undo stack depth.
	HistoryLimit int

	// LayoutDirection is the auto-layout rank direction
	// (LR, RL, TB, BT).
	LayoutDirection string

	// LayerGap and NodeGap space auto-layout ranks and nodes.
	LayerGap float64
	NodeGap  float64

	// GroupPadding is the margin a group node keeps around its
	// children.
	GroupPadding float64
}

// DefaultSettings returns the default knobs.
func DefaultSettings() Settings {
	return Settings{
		AutosaveInterval: DefaultAutosaveInterval,
		PollInterval:     DefaultPollInterval,
		HistoryLimit:     DefaultHistoryLimit,
		LayoutDirection:  DefaultLayoutDirection,
		LayerGap:         DefaultLayerGap,
		NodeGap:          DefaultNodeGap,
		GroupPadding:     DefaultGroupPadding,
	}
}

// Settings extracts editor settings from the config, falling back to
// defaults key by key.
func (c Config) Settings() Settings {
	s := DefaultSettings()
	s.AutosaveInterval = c.Duration("autosave_interval", s.AutosaveInterval)
	s.PollInterval = c.Duration("poll_interval", s.PollInterval)
	s.HistoryLimit = c.Int("history_limit", s.HistoryLimit)
	s.LayoutDirection = c.String("layout_direction", s.LayoutDirection)
	s.LayerGap = c.Float("layer_gap", s.LayerGap)
	s.NodeGap = c.Float("node_gap", s.NodeGap)
	s.GroupPadding = c.Float("group_padding", s.GroupPadding)
	return s
}
