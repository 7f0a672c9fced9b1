// Package template implements the {{var}} substitution and scoped
// {{trim}}...{{/trim}} engine of §4.4. The substitution set is closed: no
// arithmetic, no conditionals, no user-defined macros. Missing variables
// expand to the empty string, matching the external convention the source
// format follows.
package template

import (
	"regexp"
	"strings"
)

// Vars holds values for the closed substitution set named in §4.4.
type Vars struct {
	Char           string
	Description    string
	Personality    string
	Scenario       string
	User           string
	Persona        string
	System         string
	MesExamples    string
	MesExamplesRaw string
	WIBefore       string
	WIAfter        string
	LoreBefore     string
	LoreAfter      string
	AnchorBefore   string
	AnchorAfter    string
}

// asMap returns vars as a name->value map over exactly the closed set.
func (v Vars) asMap() map[string]string {
	return map[string]string{
		"char":           v.Char,
		"description":    v.Description,
		"personality":    v.Personality,
		"scenario":       v.Scenario,
		"user":           v.User,
		"persona":        v.Persona,
		"system":         v.System,
		"mesExamples":    v.MesExamples,
		"mesExamplesRaw": v.MesExamplesRaw,
		"wiBefore":       v.WIBefore,
		"wiAfter":        v.WIAfter,
		"loreBefore":     v.LoreBefore,
		"loreAfter":      v.LoreAfter,
		"anchorBefore":   v.AnchorBefore,
		"anchorAfter":    v.AnchorAfter,
	}
}

var (
	varPattern  = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)
	trimPattern = regexp.MustCompile(`(?s)\{\{trim\}\}(.*?)\{\{/trim\}\}`)
)

// Render expands {{var}} substitutions and {{trim}}...{{/trim}} scopes in
// text. Trim scopes are resolved first so that a trimmed region's own
// leading/trailing newlines are stripped before the surrounding text is
// assembled; variable substitution then runs over the whole result,
// including inside what was a trim scope, so trimmed content can itself
// reference variables.
func Render(text string, vars Vars) string {
	trimmed := trimPattern.ReplaceAllStringFunc(text, func(match string) string {
		inner := trimPattern.FindStringSubmatch(match)[1]
		return strings.Trim(inner, "\n")
	})
	m := vars.asMap()
	return varPattern.ReplaceAllStringFunc(trimmed, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if val, ok := m[name]; ok {
			return val
		}
		return ""
	})
}
