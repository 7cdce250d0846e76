package metrics

import (
	"strings"
	"unicode/utf8"

	"github.com/petasbytes/go-conv/conv"
)

// Features holds basic local text features derived from an input string.
type Features struct {
	Bytes int `json:"bytes"`
	Runes int `json:"runes"`
	Words int `json:"words"`
	Lines int `json:"lines"`
}

// Add returns the field-wise sum of f and g.
func (f Features) Add(g Features) Features {
	return Features{
		Bytes: f.Bytes + g.Bytes,
		Runes: f.Runes + g.Runes,
		Words: f.Words + g.Words,
		Lines: f.Lines + g.Lines,
	}
}

// CountFeatures computes and returns byte, rune, word, and line counts for the input string.
func CountFeatures(s string) Features {
	b := len(s)
	r := utf8.RuneCountInString(s)
	w := countWords(s)
	l := countLines(s)
	return Features{Bytes: b, Runes: r, Words: w, Lines: l}
}

// CountMessage counts the text of m, including tool call arguments.
func CountMessage(m conv.Message) Features {
	f := CountFeatures(m.Text())
	for _, c := range m.ToolCalls() {
		f = f.Add(CountFeatures(string(c.Arguments)))
	}
	return f
}

// SumMessages totals CountMessage over msgs.
func SumMessages(msgs []conv.Message) Features {
	var f Features
	for _, m := range msgs {
		f = f.Add(CountMessage(m))
	}
	return f
}

// countWords counts words split on Unicode whitespace.
func countWords(s string) int {
	return len(strings.Fields(s))
}

// countLines returns 0 for empty strings; otherwise 1 plus the number of '\n' runes.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}
