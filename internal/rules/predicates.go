package rules

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// PredicateSpec carries the arguments of a named structural predicate.
type PredicateSpec struct {
	Name  string
	Limit int
	Arg   string
}

type predicateFactory struct {
	needsLimit bool
	needsArg   bool
	build      func(PredicateSpec) Matcher
}

var predicates = map[string]predicateFactory{
	"max-line-length": {needsLimit: true, build: func(p PredicateSpec) Matcher {
		return maxLineLength{limit: p.Limit}
	}},
	"max-file-lines": {needsLimit: true, build: func(p PredicateSpec) Matcher {
		return maxFileLines{limit: p.Limit}
	}},
	"max-function-lines": {needsLimit: true, build: func(p PredicateSpec) Matcher {
		return maxFunctionLines{limit: p.Limit}
	}},
	"must-contain": {needsArg: true, build: func(p PredicateSpec) Matcher {
		return mustContain{s: p.Arg}
	}},
	"trailing-newline": {build: func(PredicateSpec) Matcher {
		return trailingNewline{}
	}},
}

// PredicateNames lists the registered structural predicates, sorted.
func PredicateNames() []string {
	out := make([]string, 0, len(predicates))
	for n := range predicates {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Predicate builds a named structural matcher.
func Predicate(p PredicateSpec) (Matcher, error) {
	f, ok := predicates[p.Name]
	if !ok {
		return nil, fmt.Errorf("unknown predicate %q (known: %s)", p.Name, strings.Join(PredicateNames(), ", "))
	}
	if f.needsLimit && p.Limit <= 0 {
		return nil, fmt.Errorf("predicate %s: limit must be > 0", p.Name)
	}
	if f.needsArg && p.Arg == "" {
		return nil, fmt.Errorf("predicate %s: arg is required", p.Name)
	}
	if !f.needsLimit && p.Limit != 0 {
		return nil, fmt.Errorf("predicate %s: takes no limit", p.Name)
	}
	if !f.needsArg && p.Arg != "" {
		return nil, fmt.Errorf("predicate %s: takes no arg", p.Name)
	}
	return f.build(p), nil
}

type maxLineLength struct{ limit int }

func (maxLineLength) Kind() string { return "max-line-length" }

func (m maxLineLength) Find(ctx context.Context, t *Text) []Hit {
	var out []Hit
	for i, l := range t.Lines() {
		if i%4096 == 0 && ctx.Err() != nil {
			return out
		}
		if n := utf8.RuneCountInString(l); n > m.limit {
			out = append(out, Hit{Line: i + 1, Column: m.limit + 1, Text: excerpt(l), Limit: m.limit, Count: n})
		}
	}
	return out
}

type maxFileLines struct{ limit int }

func (maxFileLines) Kind() string { return "max-file-lines" }

func (m maxFileLines) Find(_ context.Context, t *Text) []Hit {
	if n := len(t.Lines()); n > m.limit {
		return []Hit{{Limit: m.limit, Count: n}}
	}
	return nil
}

type mustContain struct{ s string }

func (mustContain) Kind() string { return "must-contain" }

func (m mustContain) Find(_ context.Context, t *Text) []Hit {
	if strings.Contains(t.String(), m.s) {
		return nil
	}
	return []Hit{{Text: excerpt(m.s)}}
}

type trailingNewline struct{}

func (trailingNewline) Kind() string { return "trailing-newline" }

func (trailingNewline) Find(_ context.Context, t *Text) []Hit {
	s := t.String()
	if s == "" || strings.HasSuffix(s, "\n") {
		return nil
	}
	return []Hit{{}}
}

// Function headers for C-family sources (JavaScript, Apps Script, C++).
// funcHeaderRe needs the opening brace on the header line; funcSigRe matches
// a header whose brace sits alone on the next line (Allman style, as JUCE
// code is written).
var (
	funcHeaderRe = regexp.MustCompile(`\bfunction\b[^;{]*\{|=>\s*\{|^\s*(?:[\w:<>,*&~\[\]]+\s+)*[~\w:]+\s*\([^;{}]*\)\s*(?:const\s*)?(?:noexcept\s*)?(?:override\s*)?\{`)
	funcSigRe    = regexp.MustCompile(`(?:\bfunction\b[^;{]*\)|=>|^\s*(?:[\w:<>,*&~\[\]]+\s+)*[~\w:]+\s*\([^;{}]*\)\s*(?:const\s*)?(?:noexcept\s*)?(?:override\s*)?(?:final\s*)?)\s*$`)
	controlRe    = regexp.MustCompile(`^\s*(?:\}\s*)?(?:else\s+)?(?:if|for|while|switch|catch|do|else|return|with)\b`)
)

type maxFunctionLines struct{ limit int }

func (maxFunctionLines) Kind() string { return "max-function-lines" }

func (m maxFunctionLines) Find(ctx context.Context, t *Text) []Hit {
	lines := t.Lines()
	var out []Hit
	for i, l := range lines {
		if i%256 == 0 && ctx.Err() != nil {
			return out
		}
		if controlRe.MatchString(l) {
			continue
		}
		braceLine, braceCol, startCol, ok := functionOpen(lines, i)
		if !ok {
			continue
		}
		end, ok := closingLine(lines, braceLine, braceCol)
		if !ok {
			continue
		}
		if n := end - i + 1; n > m.limit {
			out = append(out, Hit{Line: i + 1, Column: utf8.RuneCountInString(l[:startCol]) + 1, Text: excerpt(l), Limit: m.limit, Count: n})
		}
	}
	return out
}

// functionOpen reports whether lines[i] starts a function and where its
// opening brace is. startCol is the byte offset of the header on lines[i].
func functionOpen(lines []string, i int) (braceLine, braceCol, startCol int, ok bool) {
	l := lines[i]
	if loc := funcHeaderRe.FindStringIndex(l); loc != nil {
		return i, loc[1] - 1, loc[0], true
	}
	if i+1 >= len(lines) || strings.TrimSpace(lines[i+1]) != "{" {
		return 0, 0, 0, false
	}
	loc := funcSigRe.FindStringIndex(l)
	if loc == nil || strings.TrimSpace(l) == "" {
		return 0, 0, 0, false
	}
	return i + 1, strings.IndexByte(lines[i+1], '{'), loc[0], true
}

// closingLine returns the index of the line holding the brace that balances
// the one at lines[start][col]. Braces inside quotes, line comments and block
// comments are ignored.
func closingLine(lines []string, start, col int) (int, bool) {
	depth := 0
	inBlock := false
	for i := start; i < len(lines); i++ {
		l := lines[i]
		from := 0
		if i == start {
			from = col
		}
		var quote byte
		for j := from; j < len(l); j++ {
			c := l[j]
			switch {
			case inBlock:
				if c == '*' && j+1 < len(l) && l[j+1] == '/' {
					inBlock = false
					j++
				}
			case quote != 0:
				if c == '\\' {
					j++
				} else if c == quote {
					quote = 0
				}
			case c == '"' || c == '\'' || c == '`':
				quote = c
			case c == '/' && j+1 < len(l) && l[j+1] == '/':
				j = len(l)
			case c == '/' && j+1 < len(l) && l[j+1] == '*':
				inBlock = true
				j++
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}
