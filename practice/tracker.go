package practice

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Utterance is one attributed, timestamped piece of speech-derived text.
type Utterance struct {
	Speaker   Speaker
	Text      string
	Timestamp time.Time
}

// wordsPerSecond approximates conversational speech at 150 words per minute.
const wordsPerSecond = 2.5

// complexWordLength is the letter count at which a word counts towards
// vocabulary complexity.
const complexWordLength = 7

// SessionMetrics aggregates the user's side of the conversation.
type SessionMetrics struct {
	SpeakingTime         time.Duration // Estimated time the user spent talking.
	ResponseCount        int           // Number of user utterances.
	AvgResponseTime      time.Duration // Mean delay between an assistant turn and the user's answer.
	VocabularyComplexity int           // Distinct long words used by the user.
	UserEngagement       int           // Total words spoken by the user.
	ConversationFlow     int           // User turns that directly answered an assistant turn.
}

// Tracker is the append-only log of a single session. It is safe for
// concurrent use.
type Tracker struct {
	mu sync.Mutex

	history  []Utterance
	feedback []FeedbackSignal
	metrics  SessionMetrics

	lastUser        time.Time
	hasUser         bool
	pendingPrompt   time.Time // timestamp of an assistant turn not yet answered
	hasPrompt       bool
	responseGapSum  time.Duration
	responseGapSeen int
	complexWords    map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		complexWords: make(map[string]struct{}),
	}
}

// Record appends u to the history and returns the feedback produced for it.
// Assistant utterances never produce feedback. A timestamp older than the
// latest entry is raised to that entry's timestamp so history stays ordered.
func (t *Tracker) Record(u Utterance) []FeedbackSignal {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.history); n > 0 {
		if last := t.history[n-1].Timestamp; u.Timestamp.Before(last) {
			u.Timestamp = last
		}
	}
	index := len(t.history)
	t.history = append(t.history, u)

	if u.Speaker != SpeakerUser {
		t.pendingPrompt = u.Timestamp
		t.hasPrompt = true
		return nil
	}

	t.lastUser = u.Timestamp
	t.hasUser = true
	t.updateMetrics(u)

	signals := Analyze(u.Text)
	for i := range signals {
		signals[i].UtteranceIndex = index
		signals[i].Timestamp = u.Timestamp
	}
	t.feedback = append(t.feedback, signals...)

	out := make([]FeedbackSignal, len(signals))
	copy(out, signals)
	return out
}

func (t *Tracker) updateMetrics(u Utterance) {
	words := strings.Fields(u.Text)

	t.metrics.ResponseCount++
	t.metrics.UserEngagement += len(words)
	t.metrics.SpeakingTime += time.Duration(float64(len(words)) / wordsPerSecond * float64(time.Second))

	for _, word := range words {
		word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }))
		if len([]rune(word)) >= complexWordLength {
			t.complexWords[word] = struct{}{}
		}
	}
	t.metrics.VocabularyComplexity = len(t.complexWords)

	if t.hasPrompt {
		t.metrics.ConversationFlow++
		t.responseGapSum += u.Timestamp.Sub(t.pendingPrompt)
		t.responseGapSeen++
		t.metrics.AvgResponseTime = t.responseGapSum / time.Duration(t.responseGapSeen)
		t.hasPrompt = false
	}
}

// LastUserActivity reports the timestamp of the most recent user utterance.
func (t *Tracker) LastUserActivity() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUser, t.hasUser
}

func (t *Tracker) History() []Utterance {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Utterance, len(t.history))
	copy(out, t.history)
	return out
}

func (t *Tracker) Feedback() []FeedbackSignal {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FeedbackSignal, len(t.feedback))
	copy(out, t.feedback)
	return out
}

func (t *Tracker) Metrics() SessionMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}

// FeedbackCounts tallies recorded signals by kind.
func (t *Tracker) FeedbackCounts() map[FeedbackKind]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[FeedbackKind]int)
	for _, signal := range t.feedback {
		counts[signal.Kind]++
	}
	return counts
}
