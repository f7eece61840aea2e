package practice

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type FeedbackKind string

const (
	FeedbackFillerWords FeedbackKind = "filler_words"
	FeedbackElaboration FeedbackKind = "elaboration"
)

const (
	FillerWordsSuggestion = "Try to reduce filler words for clearer communication"
	ElaborationSuggestion = "Try to elaborate on your thoughts with more detail"

	// MinElaborationWords is the smallest whitespace token count that does
	// not trigger an elaboration prompt.
	MinElaborationWords = 5
)

// FillerWords is the fixed vocabulary scanned by Analyze.
var FillerWords = []string{"um", "uh", "like", "you know", "sort of", "kind of"}

var fillerPatterns = compileFillerPatterns(FillerWords)

// compileFillerPatterns builds one pattern per filler. The leading group
// requires a non-word rune (any script) or the start of the text. Go's \b is
// ASCII-only, so the trailing boundary is checked by countFiller.
func compileFillerPatterns(fillers []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(fillers))
	for i, filler := range fillers {
		patterns[i] = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])(` + regexp.QuoteMeta(filler) + `)`)
	}
	return patterns
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

// countFiller counts whole-word occurrences of a filler in text.
func countFiller(pattern *regexp.Regexp, text string) int {
	n := 0
	for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
		end := loc[3]
		if r, _ := utf8.DecodeRuneInString(text[end:]); end < len(text) && isWordRune(r) {
			continue
		}
		n++
	}
	return n
}

// FeedbackSignal is one observation about a single user utterance.
type FeedbackSignal struct {
	Kind    FeedbackKind
	Payload map[string]any

	// UtteranceIndex is the position of the source utterance in the tracker
	// history, or -1 when the signal was produced outside a tracker.
	UtteranceIndex int
	Timestamp      time.Time
}

// Count returns the integer "count" payload entry, if present.
func (s FeedbackSignal) Count() int {
	n, _ := s.Payload["count"].(int)
	return n
}

// Suggestion returns the "suggestion" payload entry.
func (s FeedbackSignal) Suggestion() string {
	text, _ := s.Payload["suggestion"].(string)
	return text
}

// Analyze applies the filler and elaboration rules to one utterance. Filler
// expressions are counted in the lower-cased text on word boundaries, so "um"
// matches "um," but not "summer". Blank text produces no signals.
func Analyze(text string) []FeedbackSignal {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var signals []FeedbackSignal
	lowered := strings.ToLower(text)

	total := 0
	var matched []string
	for i, filler := range FillerWords {
		if n := countFiller(fillerPatterns[i], lowered); n > 0 {
			total += n
			matched = append(matched, filler)
		}
	}
	if total > 0 {
		signals = append(signals, FeedbackSignal{
			Kind: FeedbackFillerWords,
			Payload: map[string]any{
				"count":      total,
				"fillers":    matched,
				"suggestion": FillerWordsSuggestion,
			},
			UtteranceIndex: -1,
		})
	}

	if words := len(strings.Fields(text)); words < MinElaborationWords {
		signals = append(signals, FeedbackSignal{
			Kind: FeedbackElaboration,
			Payload: map[string]any{
				"words":      words,
				"suggestion": ElaborationSuggestion,
			},
			UtteranceIndex: -1,
		})
	}
	return signals
}
