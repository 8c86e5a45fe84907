package chunker_test

import (
	"strings"
	"testing"

	"app/pkg/chunker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "sentences and paragraphs",
			text:     "Hello world. How are you?\n\nGreat day!",
			expected: []string{"Hello world.", "How are you?", "Great day!"},
		},
		{
			name:     "empty text",
			text:     "",
			expected: nil,
		},
		{
			name:     "whitespace only",
			text:     " \n\t \n\n  ",
			expected: nil,
		},
		{
			name:     "no terminal punctuation",
			text:     "a paragraph without an ending",
			expected: []string{"a paragraph without an ending"},
		},
		{
			name:     "trailing fragment after last terminator",
			text:     "First sentence. and then a trailing bit",
			expected: []string{"First sentence.", "and then a trailing bit"},
		},
		{
			name:     "internal whitespace collapsed",
			text:     "Too   many\tspaces.   Really?",
			expected: []string{"Too many spaces.", "Really?"},
		},
		{
			name:     "newlines inside a paragraph are not boundaries",
			text:     "One line\nanother line. Second sentence!",
			expected: []string{"One line another line.", "Second sentence!"},
		},
		{
			name:     "blank lines with spaces still split paragraphs",
			text:     "Para one\n   \nPara two.",
			expected: []string{"Para one", "Para two."},
		},
		{
			name:     "repeated terminators stay attached",
			text:     "Wait!! Really?! Yes.",
			expected: []string{"Wait!!", "Really?!", "Yes."},
		},
		{
			name:     "ellipsis stays within one sentence until whitespace",
			text:     "Well... maybe. Sure.",
			expected: []string{"Well...", "maybe.", "Sure."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, chunker.Split(tt.text))
		})
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := "One. Two! Three?\n\nFour five six. Seven"

	first := chunker.Split(text)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, chunker.Split(text))
	}
}

func TestSplitNoEmptyChunks(t *testing.T) {
	texts := []string{
		"a. b. c.",
		"...",
		". . .",
		"one!  two!  ",
		strings.Repeat("word ", 100) + "end.",
	}

	for _, text := range texts {
		for _, chunk := range chunker.Split(text) {
			assert.NotEmpty(t, strings.TrimSpace(chunk))
		}
	}
}

func TestSplitPreservesOrder(t *testing.T) {
	text := "alpha. beta. gamma.\n\ndelta. epsilon."

	chunks := chunker.Split(text)
	require.Equal(t, []string{"alpha.", "beta.", "gamma.", "delta.", "epsilon."}, chunks)
}
