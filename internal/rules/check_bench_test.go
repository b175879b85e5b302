package rules_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/codewithboateng/confcheck/internal/ir"
	"github.com/codewithboateng/confcheck/internal/rules"
)

func benchSources(n int) []ir.Source {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "function f%d(a) {\n  var x = a == %d;\n  return x;\n}\n", i, i)
	}
	body := b.String()
	out := make([]ir.Source, n)
	for i := range out {
		out[i] = ir.Source{Path: fmt.Sprintf("src/m%03d/file.js", i), Text: body}
	}
	return out
}

func BenchmarkCheck(b *testing.B) {
	lit, _ := rules.Literal("var ")
	re, _ := rules.Regex(`[^=!<>]==[^=]`, false)
	fn, _ := rules.Predicate(rules.PredicateSpec{Name: "max-function-lines", Limit: 3})
	var rs []rules.Rule
	for _, spec := range []struct {
		id string
		m  rules.Matcher
	}{{"no-var", lit}, {"eqeq", re}, {"fn-len", fn}} {
		r, err := rules.NewRule(spec.id, "", []string{"*.js"}, ir.SeverityWarning, spec.m, "{{.RuleID}} at {{.Line}}")
		if err != nil {
			b.Fatal(err)
		}
		rs = append(rs, r)
	}
	set, err := rules.NewRuleSet(rs...)
	if err != nil {
		b.Fatal(err)
	}
	files := benchSources(50)

	for _, workers := range []int{1, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				rep := rules.Check(context.Background(), set, files, rules.Options{Workers: workers})
				if len(rep.Findings) != 50*600 {
					b.Fatalf("findings = %d", len(rep.Findings))
				}
			}
		})
	}
}
