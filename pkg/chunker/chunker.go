package chunker

import (
	"regexp"
	"strings"
)

var (
	paragraphSplit   = regexp.MustCompile(`\n\s*\n`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
	sentenceTerminal = ".!?"
)

// Split breaks text into one sentence per chunk, respecting paragraphs.
// The same split fixes chunk indices at submission time, so it has to be
// deterministic and agree with any client-side estimate of it.
func Split(text string) []string {
	if text == "" {
		return nil
	}

	var chunks []string

	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(whitespaceRuns.ReplaceAllString(para, " "))
		if para == "" {
			continue
		}

		for _, sentence := range splitSentences(para) {
			sentence = strings.TrimSpace(sentence)
			if sentence != "" {
				chunks = append(chunks, sentence)
			}
		}
	}

	return chunks
}

// splitSentences cuts a whitespace-normalized paragraph at every space that
// follows a sentence terminator, keeping the terminator attached to the
// preceding sentence. A paragraph without terminal punctuation still yields
// one trailing sentence.
func splitSentences(para string) []string {
	var sentences []string

	start := 0
	for i := 1; i < len(para); i++ {
		if para[i] == ' ' && strings.IndexByte(sentenceTerminal, para[i-1]) >= 0 {
			sentences = append(sentences, para[start:i])
			start = i + 1
		}
	}

	if start < len(para) {
		sentences = append(sentences, para[start:])
	}

	return sentences
}
