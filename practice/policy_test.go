package practice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPolicyNoActivityNeverNudges(t *testing.T) {
	policy := NewEngagementPolicy(DefaultPolicyConfig())
	_, fire := policy.Evaluate(t0.Add(time.Hour), time.Time{}, false)
	assert.False(t, fire)
	assert.Equal(t, PolicyStateIdleWatch, policy.State())
}

func TestPolicyNudgesOncePerIdlePeriod(t *testing.T) {
	tracker := NewTracker()
	tracker.Record(Utterance{Speaker: SpeakerUser, Text: "I like hiking", Timestamp: t0})
	policy := NewEngagementPolicy(DefaultPolicyConfig())

	evaluate := func(at time.Duration) (Nudge, bool) {
		last, ok := tracker.LastUserActivity()
		return policy.Evaluate(t0.Add(at), last, ok)
	}

	_, fire := evaluate(29 * time.Second)
	assert.False(t, fire)

	nudge, fire := evaluate(31 * time.Second)
	require.True(t, fire)
	assert.Equal(t, NudgeInstructions, nudge.Instructions)
	assert.Equal(t, 31*time.Second, nudge.IdleFor)
	assert.Equal(t, PolicyStateNudgeIssued, policy.State())

	_, fire = evaluate(35 * time.Second)
	assert.False(t, fire)

	// New activity re-arms the policy.
	tracker.Record(Utterance{Speaker: SpeakerUser, Text: "sorry, I was thinking", Timestamp: t0.Add(40 * time.Second)})
	_, fire = evaluate(41 * time.Second)
	assert.False(t, fire)
	assert.Equal(t, PolicyStateIdleWatch, policy.State())

	_, fire = evaluate(71 * time.Second)
	assert.True(t, fire)
}

func TestPolicyThresholdIsExclusive(t *testing.T) {
	policy := NewEngagementPolicy(PolicyConfig{IdleThreshold: 10 * time.Second, TickInterval: time.Second})
	_, fire := policy.Evaluate(t0.Add(10*time.Second), t0, true)
	assert.False(t, fire)
	_, fire = policy.Evaluate(t0.Add(10*time.Second+time.Nanosecond), t0, true)
	assert.True(t, fire)
}

func TestPolicyDefaultsInvalidConfig(t *testing.T) {
	policy := NewEngagementPolicy(PolicyConfig{})
	assert.Equal(t, DefaultPolicyConfig(), policy.Config())
}

func TestPolicyAtMostOneNudgePerActivity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		policy := NewEngagementPolicy(DefaultPolicyConfig())
		activity := t0
		now := t0
		nudgesForActivity := 0

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			now = now.Add(time.Duration(rapid.IntRange(0, 20).Draw(t, "advance")) * time.Second)
			if rapid.IntRange(0, 9).Draw(t, "speak") == 0 {
				activity = now
				nudgesForActivity = 0
			}
			_, fire := policy.Evaluate(now, activity, true)
			if fire {
				nudgesForActivity++
				assert.Greater(t, now.Sub(activity), DefaultPolicyConfig().IdleThreshold)
			}
			assert.LessOrEqual(t, nudgesForActivity, 1)
		}
	})
}
