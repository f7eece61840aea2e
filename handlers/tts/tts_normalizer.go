package tts

import (
	"regexp"
	"strings"
)

var markdownReplacer = strings.NewReplacer(
	"**", "", // bold
	"__", "", // underline
	"~~", "", // strikethrough
	"*", "", // italic
	"`", "", // inline code
	"#", "", // headings
)

var (
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}\s]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// normalizeTextForTTS strips formatting the synthesizer would read aloud.
func normalizeTextForTTS(text string) string {
	text = markdownReplacer.Replace(text)
	text = removeEmojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// splitSpeakable returns the longest prefix of text that ends in a break
// character followed by whitespace and is at least minLength long, plus the
// remainder. ready is empty when no such prefix exists yet.
func splitSpeakable(text string, breaks []string, minLength int) (ready string, rest string) {
	cut := -1
	for i := 0; i < len(text)-1; i++ {
		if !isBreak(text[i], breaks) {
			continue
		}
		if next := text[i+1]; next != ' ' && next != '\n' && next != '\t' {
			continue
		}
		if i+1 >= minLength {
			cut = i + 1
		}
	}
	if cut < 0 {
		return "", text
	}
	return text[:cut], text[cut:]
}

func isBreak(c byte, breaks []string) bool {
	for _, b := range breaks {
		if len(b) == 1 && b[0] == c {
			return true
		}
	}
	return false
}
