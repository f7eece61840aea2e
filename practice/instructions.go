package practice

import (
	"fmt"
	"strings"
)

var coachingGuidelines = []string{
	"Keep your responses conversational and natural.",
	"Ask follow-up questions to keep the conversation going.",
	"Give gentle corrections when appropriate.",
	"Encourage the user to elaborate on their thoughts.",
	"Point out filler words such as \"um\" or \"like\" when the user relies on them.",
	"Be patient and supportive.",
	"Adjust your speaking pace to the user's level.",
}

// BuildInstructions renders the system prompt for a practice session. Unknown
// difficulty values get the intermediate guidance.
func BuildInstructions(topic string, difficulty Difficulty) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}
	tier, _ := ParseDifficulty(string(difficulty))

	var b strings.Builder
	b.WriteString("You are a friendly and encouraging conversation practice partner. ")
	b.WriteString("Your goal is to help users improve their conversational skills through natural dialogue.\n\n")
	fmt.Fprintf(&b, "Focus the conversation on %s and keep returning to it when the talk drifts.\n", topic)
	fmt.Fprintf(&b, "Adapt the complexity of the conversation to the %s level.\n\n", tier)

	b.WriteString("Guidelines:\n")
	for _, line := range coachingGuidelines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	switch tier {
	case DifficultyBeginner:
		b.WriteString("\nUse simple vocabulary and short sentences. Give the user extra time to respond.\n")
	case DifficultyAdvanced:
		b.WriteString("\nUse complex vocabulary and ask nuanced, open-ended questions.\n")
	default:
		b.WriteString("\nUse everyday vocabulary at a natural pace.\n")
	}
	return b.String()
}

// GreetingInstructions asks the model to open the session with a topic-aware welcome.
func GreetingInstructions(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}
	return fmt.Sprintf(
		"Greet the user with: \"Hello! I'm here to help you practice %s conversations. "+
			"Let's start with a simple question to get our conversation flowing. "+
			"How are you feeling about discussing this topic today?\"",
		topic,
	)
}
