package analyzer

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Sentences splits text on Unicode sentence boundaries. Blank segments are dropped
// and each sentence is trimmed.
func Sentences(text string) []string {
	var sentences []string
	state := -1
	for len(text) > 0 {
		var sentence string
		sentence, text, state = uniseg.FirstSentenceInString(text, state)
		if trimmed := strings.TrimSpace(sentence); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}
