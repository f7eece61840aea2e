package practice

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestTrackerLastUserActivity(t *testing.T) {
	tracker := NewTracker()

	_, ok := tracker.LastUserActivity()
	assert.False(t, ok)

	tracker.Record(Utterance{Speaker: SpeakerAssistant, Text: "Hello there", Timestamp: t0})
	_, ok = tracker.LastUserActivity()
	assert.False(t, ok, "assistant turns are not user activity")

	at := t0.Add(3 * time.Second)
	tracker.Record(Utterance{Speaker: SpeakerUser, Text: "hi", Timestamp: at})
	last, ok := tracker.LastUserActivity()
	require.True(t, ok)
	assert.Equal(t, at, last)
}

func TestTrackerRecordsFeedbackForUserOnly(t *testing.T) {
	tracker := NewTracker()

	assert.Empty(t, tracker.Record(Utterance{Speaker: SpeakerAssistant, Text: "um ok", Timestamp: t0}))
	signals := tracker.Record(Utterance{Speaker: SpeakerUser, Text: "um ok", Timestamp: t0.Add(time.Second)})

	require.Len(t, signals, 2)
	assert.Equal(t, FeedbackFillerWords, signals[0].Kind)
	assert.Equal(t, FeedbackElaboration, signals[1].Kind)
	for _, s := range signals {
		assert.Equal(t, 1, s.UtteranceIndex)
		assert.Equal(t, t0.Add(time.Second), s.Timestamp)
	}
	assert.Equal(t, signals, tracker.Feedback())
	assert.Equal(t, map[FeedbackKind]int{FeedbackFillerWords: 1, FeedbackElaboration: 1}, tracker.FeedbackCounts())
}

func TestTrackerClampsOutOfOrderTimestamps(t *testing.T) {
	tracker := NewTracker()
	tracker.Record(Utterance{Speaker: SpeakerUser, Text: "first answer", Timestamp: t0.Add(5 * time.Second)})
	tracker.Record(Utterance{Speaker: SpeakerUser, Text: "late answer", Timestamp: t0})

	history := tracker.History()
	require.Len(t, history, 2)
	assert.Equal(t, "late answer", history[1].Text)
	assert.Equal(t, t0.Add(5*time.Second), history[1].Timestamp)
}

func TestTrackerHistoryIsACopy(t *testing.T) {
	tracker := NewTracker()
	tracker.Record(Utterance{Speaker: SpeakerUser, Text: "original", Timestamp: t0})

	history := tracker.History()
	history[0].Text = "changed"

	assert.Equal(t, "original", tracker.History()[0].Text)
}

func TestTrackerMetrics(t *testing.T) {
	tracker := NewTracker()
	tracker.Record(Utterance{Speaker: SpeakerAssistant, Text: "How was your weekend?", Timestamp: t0})
	tracker.Record(Utterance{Speaker: SpeakerUser, Text: "Wonderful, we visited fascinating museums", Timestamp: t0.Add(2 * time.Second)})
	tracker.Record(Utterance{Speaker: SpeakerUser, Text: "and wonderful restaurants", Timestamp: t0.Add(6 * time.Second)})
	tracker.Record(Utterance{Speaker: SpeakerAssistant, Text: "Which one did you like most?", Timestamp: t0.Add(8 * time.Second)})
	tracker.Record(Utterance{Speaker: SpeakerUser, Text: "The modern art one", Timestamp: t0.Add(12 * time.Second)})

	m := tracker.Metrics()
	assert.Equal(t, 3, m.ResponseCount)
	assert.Equal(t, 12, m.UserEngagement)
	assert.Equal(t, time.Duration(12/wordsPerSecond*float64(time.Second)), m.SpeakingTime)
	assert.Equal(t, 2, m.ConversationFlow)
	assert.Equal(t, 3*time.Second, m.AvgResponseTime)
	// wonderful, visited, fascinating, museums, restaurants
	assert.Equal(t, 5, m.VocabularyComplexity)
}

func TestTrackerProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tracker := NewTracker()
		n := rapid.IntRange(1, 30).Draw(t, "n")

		var prev SessionMetrics
		var lastUser time.Time
		for i := 0; i < n; i++ {
			speaker := rapid.SampledFrom([]Speaker{SpeakerUser, SpeakerAssistant}).Draw(t, "speaker")
			text := rapid.StringMatching(`[a-z ]{0,60}`).Draw(t, "text")
			offset := time.Duration(rapid.IntRange(0, 120).Draw(t, "offset")) * time.Second

			u := Utterance{Speaker: speaker, Text: text, Timestamp: t0.Add(offset)}
			tracker.Record(u)

			m := tracker.Metrics()
			assert.GreaterOrEqual(t, m.ResponseCount, prev.ResponseCount)
			assert.GreaterOrEqual(t, m.UserEngagement, prev.UserEngagement)
			assert.GreaterOrEqual(t, m.SpeakingTime, prev.SpeakingTime)
			assert.GreaterOrEqual(t, m.VocabularyComplexity, prev.VocabularyComplexity)
			assert.GreaterOrEqual(t, m.ConversationFlow, prev.ConversationFlow)
			prev = m

			history := tracker.History()
			if speaker == SpeakerUser {
				lastUser = history[len(history)-1].Timestamp
				got, ok := tracker.LastUserActivity()
				assert.True(t, ok)
				assert.Equal(t, lastUser, got)
			}
		}

		history := tracker.History()
		assert.Len(t, history, n)
		assert.True(t, sort.SliceIsSorted(history, func(i, j int) bool {
			return history[i].Timestamp.Before(history[j].Timestamp)
		}))
		for _, signal := range tracker.Feedback() {
			require.Less(t, signal.UtteranceIndex, len(history))
			source := history[signal.UtteranceIndex]
			assert.Equal(t, SpeakerUser, source.Speaker)
			assert.False(t, signal.Timestamp.Before(source.Timestamp))
		}
	})
}
