package practice

import (
	"fmt"
	"time"
)

const NudgeInstructions = "The user seems to have paused. Gently encourage them to continue the conversation with a follow-up question."

type PolicyState int

const (
	PolicyStateIdleWatch PolicyState = iota
	PolicyStateNudgeIssued
)

func (s PolicyState) String() string {
	switch s {
	case PolicyStateIdleWatch:
		return "idle_watch"
	case PolicyStateNudgeIssued:
		return "nudge_issued"
	default:
		return fmt.Sprintf("PolicyState(%d)", int(s))
	}
}

// PolicyConfig holds the engagement timing tunables.
type PolicyConfig struct {
	IdleThreshold time.Duration
	TickInterval  time.Duration
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		IdleThreshold: 30 * time.Second,
		TickInterval:  time.Second,
	}
}

// Nudge is a request for a proactive assistant reply.
type Nudge struct {
	Instructions string
	IdleFor      time.Duration
}

// EngagementPolicy decides when the user has been quiet long enough to be
// prompted. It issues at most one nudge per idle period. It is not safe for
// concurrent use.
type EngagementPolicy struct {
	config PolicyConfig
	state  PolicyState

	// nudgedFor is the user activity timestamp the last nudge answered.
	nudgedFor time.Time
}

func NewEngagementPolicy(config PolicyConfig) *EngagementPolicy {
	defaults := DefaultPolicyConfig()
	if config.IdleThreshold <= 0 {
		config.IdleThreshold = defaults.IdleThreshold
	}
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	return &EngagementPolicy{config: config}
}

func (p *EngagementPolicy) Config() PolicyConfig {
	return p.config
}

func (p *EngagementPolicy) State() PolicyState {
	return p.state
}

// Evaluate runs one tick. lastActivity and ok come from
// Tracker.LastUserActivity.
func (p *EngagementPolicy) Evaluate(now, lastActivity time.Time, ok bool) (Nudge, bool) {
	if !ok {
		p.state = PolicyStateIdleWatch
		return Nudge{}, false
	}

	if p.state == PolicyStateNudgeIssued {
		if !lastActivity.After(p.nudgedFor) {
			return Nudge{}, false
		}
		p.state = PolicyStateIdleWatch
	}

	idle := now.Sub(lastActivity)
	if idle <= p.config.IdleThreshold {
		return Nudge{}, false
	}

	p.state = PolicyStateNudgeIssued
	p.nudgedFor = lastActivity
	return Nudge{Instructions: NudgeInstructions, IdleFor: idle}, true
}
