package rules

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/gobwas/glob"

	"github.com/codewithboateng/confcheck/internal/ir"
)

// Rule is a single declarative conformance check. Build it with NewRule.
type Rule struct {
	ID       string
	Summary  string
	Files    []string
	Severity ir.Severity
	Matcher  Matcher
	Message  string

	globs []fileGlob
	tmpl  *template.Template
}

type fileGlob struct {
	g        glob.Glob
	fullPath bool
}

// MessageData is what a rule's message template is rendered with.
type MessageData struct {
	RuleID string
	Path   string
	Line   int
	Column int
	Match  string
	Limit  int
	Count  int
}

// NewRule compiles the rule's globs and message template. The template is
// executed once against zero data so unknown fields fail here rather than
// during checking.
func NewRule(id, summary string, files []string, sev ir.Severity, m Matcher, message string) (Rule, error) {
	r := Rule{
		ID:       id,
		Summary:  summary,
		Files:    files,
		Severity: sev,
		Matcher:  m,
		Message:  message,
	}
	if strings.TrimSpace(id) == "" {
		return Rule{}, errors.New("missing id")
	}
	if m == nil {
		return Rule{}, errors.New("missing matcher")
	}
	if sev.Rank() == 0 {
		return Rule{}, fmt.Errorf("invalid severity %q", sev)
	}
	if len(files) == 0 {
		return Rule{}, errors.New("missing files pattern")
	}
	for _, f := range files {
		pat := strings.TrimPrefix(strings.TrimSpace(f), "./")
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return Rule{}, fmt.Errorf("files pattern %q: %w", f, err)
		}
		r.globs = append(r.globs, fileGlob{g: g, fullPath: strings.Contains(pat, "/")})
	}
	t, err := template.New(id).Parse(message)
	if err != nil {
		return Rule{}, fmt.Errorf("message template: %w", err)
	}
	if err := t.Execute(&bytes.Buffer{}, MessageData{}); err != nil {
		return Rule{}, fmt.Errorf("message template: %w", err)
	}
	r.tmpl = t
	return r, nil
}

// Applies reports whether the rule's file patterns select p. Patterns without
// a slash match the base name only.
func (r Rule) Applies(p string) bool {
	return matchAny(r.globs, p)
}

func matchAny(globs []fileGlob, p string) bool {
	p = strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, `\`, "/")), "./")
	base := path.Base(p)
	for _, fg := range globs {
		if fg.fullPath {
			if fg.g.Match(p) {
				return true
			}
			continue
		}
		if fg.g.Match(base) {
			return true
		}
	}
	return false
}

func (r Rule) render(d MessageData) string {
	if r.tmpl == nil {
		return r.Message
	}
	var b bytes.Buffer
	if err := r.tmpl.Execute(&b, d); err != nil {
		return r.Message
	}
	return b.String()
}

// RuleSet is an ordered, read-only collection of rules with unique IDs.
type RuleSet struct {
	rules []Rule
	index map[string]int
}

// NewRuleSet fails with a *ConfigError naming every duplicated ID.
func NewRuleSet(rs ...Rule) (*RuleSet, error) {
	set := &RuleSet{index: make(map[string]int, len(rs))}
	var errs []error
	for _, r := range rs {
		if _, dup := set.index[r.ID]; dup {
			errs = append(errs, &ConfigError{RuleID: r.ID, Err: errors.New("duplicate rule id")})
			continue
		}
		set.index[r.ID] = len(set.rules)
		set.rules = append(set.rules, r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

func (s *RuleSet) Len() int { return len(s.rules) }

// Rules returns a copy of the rules in load order.
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

func (s *RuleSet) Get(id string) (Rule, bool) {
	i, ok := s.index[id]
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}
