package practice

// Persona is the assistant identity bound to a voice pipeline.
type Persona interface {
	// Instructions returns the system prompt for the language model.
	Instructions() string
	// Greeting returns the instructions for the opening reply.
	Greeting() string
	// OnUtterance is called for every finalized utterance in the session.
	OnUtterance(u Utterance) []FeedbackSignal
}

// ConversationPracticeAssistant coaches the user through a topic at a given
// difficulty and keeps the session's conversation log.
type ConversationPracticeAssistant struct {
	config       SessionConfig
	tracker      *Tracker
	instructions string
}

func NewConversationPracticeAssistant(config SessionConfig, tracker *Tracker) *ConversationPracticeAssistant {
	if tracker == nil {
		tracker = NewTracker()
	}
	return &ConversationPracticeAssistant{
		config:       config,
		tracker:      tracker,
		instructions: BuildInstructions(config.Topic, config.Difficulty),
	}
}

func (a *ConversationPracticeAssistant) Instructions() string {
	return a.instructions
}

func (a *ConversationPracticeAssistant) Greeting() string {
	return GreetingInstructions(a.config.Topic)
}

func (a *ConversationPracticeAssistant) OnUtterance(u Utterance) []FeedbackSignal {
	return a.tracker.Record(u)
}

func (a *ConversationPracticeAssistant) Config() SessionConfig {
	return a.config
}

func (a *ConversationPracticeAssistant) Tracker() *Tracker {
	return a.tracker
}
