package rules

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Hit is one matcher occurrence. Line 0 marks a whole-file hit.
type Hit struct {
	Line   int
	Column int
	Text   string
	Limit  int
	Count  int
}

// Matcher decides whether a rule fires against a file's text.
type Matcher interface {
	Kind() string
	Find(ctx context.Context, text *Text) []Hit
}

// Text is a file's contents with a lazily built line index.
type Text struct {
	s      string
	starts []int
}

func NewText(s string) *Text { return &Text{s: s} }

func (t *Text) String() string { return t.s }

func (t *Text) lineStarts() []int {
	if t.starts == nil {
		t.starts = []int{0}
		for i := 0; i < len(t.s); i++ {
			if t.s[i] == '\n' {
				t.starts = append(t.starts, i+1)
			}
		}
	}
	return t.starts
}

// Position converts a byte offset to a 1-based line and rune column.
func (t *Text) Position(off int) (line, col int) {
	starts := t.lineStarts()
	line = sort.Search(len(starts), func(i int) bool { return starts[i] > off })
	col = utf8.RuneCountInString(t.s[starts[line-1]:off]) + 1
	return line, col
}

// Lines returns the file's lines without terminators. A trailing newline
// does not open an extra line, and empty text has no lines.
func (t *Text) Lines() []string {
	if t.s == "" {
		return nil
	}
	ls := strings.Split(t.s, "\n")
	if ls[len(ls)-1] == "" {
		ls = ls[:len(ls)-1]
	}
	for i, l := range ls {
		ls[i] = strings.TrimSuffix(l, "\r")
	}
	return ls
}

const maxExcerpt = 80

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i]) + "..."
	}
	if utf8.RuneCountInString(s) > maxExcerpt {
		s = string([]rune(s)[:maxExcerpt]) + "..."
	}
	return s
}

type literalMatcher struct {
	lit string
}

// Literal fires once per non-overlapping occurrence of s.
func Literal(s string) (Matcher, error) {
	if s == "" {
		return nil, errors.New("literal: empty")
	}
	return literalMatcher{lit: s}, nil
}

func (m literalMatcher) Kind() string { return "literal" }

func (m literalMatcher) Find(ctx context.Context, t *Text) []Hit {
	var out []Hit
	s := t.String()
	for off := 0; off <= len(s); {
		i := strings.Index(s[off:], m.lit)
		if i < 0 {
			break
		}
		line, col := t.Position(off + i)
		out = append(out, Hit{Line: line, Column: col, Text: excerpt(m.lit)})
		off += i + len(m.lit)
		if len(out)%1024 == 0 && ctx.Err() != nil {
			return out
		}
	}
	return out
}

type regexMatcher struct {
	re *regexp.Regexp
}

// Regex fires once per match of a Go RE2 expression. Empty matches count, so
// a pattern such as `^$` fires on empty text.
func Regex(expr string, ignoreCase bool) (Matcher, error) {
	if expr == "" {
		return nil, errors.New("regex: empty")
	}
	if ignoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("regex: %w", err)
	}
	return regexMatcher{re: re}, nil
}

// LiteralFold is a case-insensitive literal.
func LiteralFold(s string) (Matcher, error) {
	if s == "" {
		return nil, errors.New("literal: empty")
	}
	return Regex(regexp.QuoteMeta(s), true)
}

func (m regexMatcher) Kind() string { return "regex" }

// asyncScanBytes is the text size above which a regex scan runs in its own
// goroutine so a file's time budget can end the wait.
const asyncScanBytes = 64 << 10

// Find returns nothing when ctx ends first. RE2 scans cannot be interrupted,
// so an abandoned scan finishes in the background and its result is dropped.
func (m regexMatcher) Find(ctx context.Context, t *Text) []Hit {
	if ctx.Err() != nil {
		return nil
	}
	s := t.String()
	var idx [][]int
	if len(s) < asyncScanBytes || ctx.Done() == nil {
		idx = m.re.FindAllStringIndex(s, -1)
	} else {
		done := make(chan [][]int, 1)
		go func() { done <- m.re.FindAllStringIndex(s, -1) }()
		select {
		case idx = <-done:
		case <-ctx.Done():
			return nil
		}
	}
	out := make([]Hit, 0, len(idx))
	for i, loc := range idx {
		if i%1024 == 1023 && ctx.Err() != nil {
			return out
		}
		line, col := t.Position(loc[0])
		out = append(out, Hit{Line: line, Column: col, Text: excerpt(s[loc[0]:loc[1]])})
	}
	return out
}
