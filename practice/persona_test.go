package practice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConversationPracticeAssistant(t *testing.T) {
	tracker := NewTracker()
	var persona Persona = NewConversationPracticeAssistant(
		SessionConfig{Topic: "travel", Difficulty: DifficultyBeginner},
		tracker,
	)

	assert.Equal(t, BuildInstructions("travel", DifficultyBeginner), persona.Instructions())
	assert.Contains(t, persona.Greeting(), "practice travel conversations")

	signals := persona.OnUtterance(Utterance{Speaker: SpeakerUser, Text: "yes", Timestamp: time.Now()})
	assert.Len(t, signals, 1)
	assert.Len(t, tracker.History(), 1)
}
