package practice

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

const DefaultTopic = "general conversation"

// ParseDifficulty maps a free-form level name onto one of the three tiers.
// The second return value is false when the name was not recognised and the
// intermediate tier was substituted.
func ParseDifficulty(value string) (Difficulty, bool) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(value))) {
	case DifficultyBeginner:
		return DifficultyBeginner, true
	case DifficultyIntermediate:
		return DifficultyIntermediate, true
	case DifficultyAdvanced:
		return DifficultyAdvanced, true
	default:
		return DifficultyIntermediate, false
	}
}

// SessionConfig parameterizes one practice session. It is built once from the
// room metadata and never changed afterwards.
type SessionConfig struct {
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Topic:      DefaultTopic,
		Difficulty: DifficultyIntermediate,
	}
}

// ParseRoomMetadata reads the optional topic and difficulty fields from the
// room metadata JSON. It always returns a usable config. Input that is not a
// JSON object yields the defaults together with the parse error so callers can
// log it. Within an object each field is read on its own: a missing, blank or
// non-string value falls back to that field's default only.
func ParseRoomMetadata(metadata string) (SessionConfig, error) {
	cfg := DefaultSessionConfig()
	if strings.TrimSpace(metadata) == "" {
		return cfg, nil
	}

	var raw map[string]any
	if err := sonic.UnmarshalString(metadata, &raw); err != nil {
		return cfg, fmt.Errorf("parse room metadata: %w", err)
	}

	if topic, ok := raw["topic"].(string); ok {
		if topic = strings.TrimSpace(topic); topic != "" {
			cfg.Topic = topic
		}
	}
	if difficulty, ok := raw["difficulty"].(string); ok {
		cfg.Difficulty, _ = ParseDifficulty(difficulty)
	}
	return cfg, nil
}
