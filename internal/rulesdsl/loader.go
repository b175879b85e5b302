package rulesdsl

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codewithboateng/confcheck/internal/ir"
	"github.com/codewithboateng/confcheck/internal/rules"
)

// DefaultSource names the embedded rule pack in errors and run metadata.
const DefaultSource = "builtin:defaults.yaml"

//go:embed defaults.yaml
var defaultPack []byte

type dslPack struct {
	Rules []dslRule `yaml:"rules"`
}

type dslRule struct {
	ID       string     `yaml:"id"`
	Summary  string     `yaml:"summary"`
	Files    stringList `yaml:"files"`
	Severity string     `yaml:"severity"` // error|warning|info
	Message  string     `yaml:"message"`  // text/template

	Literal    string `yaml:"literal"`
	Regex      string `yaml:"regex"`
	Predicate  string `yaml:"predicate"`
	Limit      int    `yaml:"limit"`
	Arg        string `yaml:"arg"`
	IgnoreCase bool   `yaml:"ignore_case"`
}

// stringList accepts either a scalar or a sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*l = stringList{n.Value}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := n.Decode(&ss); err != nil {
			return err
		}
		*l = ss
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", n.Line)
}

// Load parses rule packs into one RuleSet. includeDefaults prepends the
// embedded pack. Every problem found is reported; each is a *rules.ConfigError.
func Load(includeDefaults bool, paths ...string) (*rules.RuleSet, error) {
	var (
		all  []rules.Rule
		errs []error
	)
	if includeDefaults {
		rs, err := Parse(defaultPack, DefaultSource)
		all = append(all, rs...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, &rules.ConfigError{Source: p, Err: fmt.Errorf("read rules pack: %w", err)})
			continue
		}
		rs, err := Parse(b, p)
		all = append(all, rs...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	set, err := rules.NewRuleSet(all...)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

// Parse decodes one YAML rule pack. Valid rules are returned alongside the
// joined errors of the invalid ones.
func Parse(data []byte, source string) ([]rules.Rule, error) {
	var pack dslPack
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pack); err != nil && !errors.Is(err, io.EOF) {
		return nil, &rules.ConfigError{Source: source, Err: fmt.Errorf("parse yaml: %w", err)}
	}
	var (
		out  []rules.Rule
		errs []error
	)
	for i, r := range pack.Rules {
		cr, err := compile(r)
		if err != nil {
			id := r.ID
			if id == "" {
				id = fmt.Sprintf("#%d", i+1)
			}
			errs = append(errs, &rules.ConfigError{Source: source, RuleID: id, Err: err})
			continue
		}
		out = append(out, cr)
	}
	return out, errors.Join(errs...)
}

func compile(r dslRule) (rules.Rule, error) {
	if r.ID == "" || r.Message == "" || r.Severity == "" {
		return rules.Rule{}, errors.New("missing required fields (id/severity/message)")
	}
	sev, ok := ir.ParseSeverity(r.Severity)
	if !ok {
		return rules.Rule{}, fmt.Errorf("severity %q: want error, warning or info", r.Severity)
	}
	m, err := matcherFor(r)
	if err != nil {
		return rules.Rule{}, err
	}
	return rules.NewRule(r.ID, r.Summary, r.Files, sev, m, r.Message)
}

func matcherFor(r dslRule) (rules.Matcher, error) {
	var set []string
	if r.Literal != "" {
		set = append(set, "literal")
	}
	if r.Regex != "" {
		set = append(set, "regex")
	}
	if r.Predicate != "" {
		set = append(set, "predicate")
	}
	switch len(set) {
	case 0:
		return nil, errors.New("one of literal, regex or predicate is required")
	case 1:
	default:
		return nil, fmt.Errorf("only one matcher allowed, got %s", strings.Join(set, " and "))
	}
	if r.Predicate == "" && (r.Limit != 0 || r.Arg != "") {
		return nil, fmt.Errorf("limit and arg apply only to predicates, not %s", set[0])
	}
	if r.Predicate != "" && r.IgnoreCase {
		return nil, errors.New("ignore_case applies only to literal and regex")
	}
	switch {
	case r.Literal != "" && r.IgnoreCase:
		return rules.LiteralFold(r.Literal)
	case r.Literal != "":
		return rules.Literal(r.Literal)
	case r.Regex != "":
		return rules.Regex(r.Regex, r.IgnoreCase)
	}
	return rules.Predicate(rules.PredicateSpec{Name: r.Predicate, Limit: r.Limit, Arg: r.Arg})
}
