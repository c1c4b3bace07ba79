package chartbind

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dgnsrekt/growthchart/internal/growth"
)

const (
	// DefaultAttribute is the data attribute holding a growth payload.
	DefaultAttribute = "chart"
	// ChildRadius is the marker radius of the subject's measurements.
	ChildRadius = 6
)

var (
	hexColorRe  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	attributeRe = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

// ValidAttribute reports whether name can follow "data-" in a page element.
func ValidAttribute(name string) bool {
	return attributeRe.MatchString(name)
}

// CurveStyle is the presentation of one reference curve.
type CurveStyle struct {
	Label string `yaml:"label" json:"label"`
	Color string `yaml:"color" json:"color"`
	Dash  []int  `yaml:"dash,omitempty" json:"dash,omitempty"`
	Width int    `yaml:"width" json:"width"`
}

// Profile configures labels, palette and accepted payload keys for a growth hook.
// Curves and FieldAliases are keyed by canonical curve key.
type Profile struct {
	Name         string                `yaml:"name" json:"name"`
	Attribute    string                `yaml:"attribute,omitempty" json:"attribute"`
	AgeAxisTitle string                `yaml:"age_axis_title" json:"age_axis_title"`
	ChildLabel   string                `yaml:"child_label" json:"child_label"`
	ChildColor   string                `yaml:"child_color" json:"child_color"`
	Curves       map[string]CurveStyle `yaml:"curves" json:"curves"`
	FieldAliases map[string][]string   `yaml:"field_aliases,omitempty" json:"field_aliases"`
}

func standardCurves(labels [7]string, outer, middle, inner, median string) map[string]CurveStyle {
	colors := [7]string{outer, middle, inner, median, inner, middle, outer}
	curves := make(map[string]CurveStyle, len(growth.Curves))
	for i, c := range growth.Curves {
		style := CurveStyle{Label: labels[i], Color: colors[i], Width: 1}
		switch c.Offset() {
		case -3, 3:
			style.Dash = []int{4, 4}
		case -2, 2:
			style.Dash = []int{5, 5}
		case -1, 1:
			style.Dash = []int{6, 6}
		default:
			style.Width = 2
		}
		curves[c.Key()] = style
	}
	return curves
}

func medianAliases() map[string][]string {
	return map[string][]string{growth.Median.Key(): {"median", "sd0", "m"}}
}

// WHOPortuguese is the legacy pt-BR preset.
func WHOPortuguese() Profile {
	return Profile{
		Name:         "who-ptbr",
		Attribute:    DefaultAttribute,
		AgeAxisTitle: "Idade (meses)",
		ChildLabel:   "Criança",
		ChildColor:   "#4b0082",
		Curves: standardCurves(
			[7]string{"-3DP", "-2DP", "-1DP", "Mediana", "+1DP", "+2DP", "+3DP"},
			"#ff0000", "#ffa500", "#008000", "#0000ff",
		),
		FieldAliases: medianAliases(),
	}
}

// WHOEnglish is the English preset.
func WHOEnglish() Profile {
	return Profile{
		Name:         "who-en",
		Attribute:    DefaultAttribute,
		AgeAxisTitle: "Age (months)",
		ChildLabel:   "Child",
		ChildColor:   "#6a1b9a",
		Curves: standardCurves(
			[7]string{"-3 SD", "-2 SD", "-1 SD", "Median", "+1 SD", "+2 SD", "+3 SD"},
			"#d32f2f", "#f57c00", "#388e3c", "#1976d2",
		),
		FieldAliases: medianAliases(),
	}
}

// Presets returns the built-in profiles by name.
func Presets() map[string]Profile {
	out := map[string]Profile{}
	for _, p := range []Profile{WHOPortuguese(), WHOEnglish()} {
		out[p.Name] = p
	}
	return out
}

// Style returns the style of one curve.
func (p Profile) Style(c growth.Curve) CurveStyle {
	return p.Curves[c.Key()]
}

// Aliases returns the payload keys accepted for each curve. A curve without
// configured aliases accepts only its canonical key.
func (p Profile) Aliases() growth.Aliases {
	out := make(growth.Aliases, len(growth.Curves))
	for _, c := range growth.Curves {
		keys := p.FieldAliases[c.Key()]
		if len(keys) == 0 {
			keys = []string{c.Key()}
		}
		out[c] = append([]string(nil), keys...)
	}
	return out
}

// Validate checks colours, curve coverage, stroke rules and alias uniqueness.
// The median must be solid and wider than every other curve. Curves of
// different bands must differ in colour or dash; the mirrored curves of one
// band (sd1neg and sd1, for example) may share a stroke.
func (p Profile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if p.Attribute != "" && !ValidAttribute(p.Attribute) {
		problems = append(problems, fmt.Sprintf("attribute %q must match %s", p.Attribute, attributeRe))
	}
	if !hexColorRe.MatchString(p.ChildColor) {
		problems = append(problems, fmt.Sprintf("child_color %q is not a hex colour", p.ChildColor))
	}
	for key := range p.Curves {
		if _, ok := growth.ParseCurve(key); !ok {
			problems = append(problems, fmt.Sprintf("unknown curve %q", key))
		}
	}
	for _, c := range growth.Curves {
		style, ok := p.Curves[c.Key()]
		if !ok {
			problems = append(problems, fmt.Sprintf("curve %s has no style", c))
			continue
		}
		if !hexColorRe.MatchString(style.Color) {
			problems = append(problems, fmt.Sprintf("curve %s colour %q is not a hex colour", c, style.Color))
		}
		if style.Width <= 0 {
			problems = append(problems, fmt.Sprintf("curve %s width must be positive", c))
		}
	}
	problems = append(problems, p.strokeProblems()...)

	claimed := map[string]string{}
	for key, aliases := range p.FieldAliases {
		if _, ok := growth.ParseCurve(key); !ok {
			problems = append(problems, fmt.Sprintf("aliases for unknown curve %q", key))
			continue
		}
		if len(aliases) == 0 {
			problems = append(problems, fmt.Sprintf("curve %s has an empty alias list", key))
		}
		for _, alias := range aliases {
			if strings.TrimSpace(alias) == "" {
				problems = append(problems, fmt.Sprintf("curve %s has a blank alias", key))
				continue
			}
			if owner, dup := claimed[alias]; dup && owner != key {
				problems = append(problems, fmt.Sprintf("alias %q claimed by %s and %s", alias, owner, key))
			}
			claimed[alias] = key
		}
	}
	// A canonical key left without explicit aliases is implicitly claimed by its curve.
	for _, c := range growth.Curves {
		if _, explicit := p.FieldAliases[c.Key()]; explicit {
			continue
		}
		if owner, dup := claimed[c.Key()]; dup && owner != c.Key() {
			problems = append(problems, fmt.Sprintf("alias %q claimed by %s and %s", c.Key(), owner, c.Key()))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return newError(CodeValidation, fmt.Sprintf("profile %q: %s", p.Name, strings.Join(problems, "; ")), nil)
}

func band(c growth.Curve) int {
	if c.Offset() < 0 {
		return -c.Offset()
	}
	return c.Offset()
}

func strokeKey(s CurveStyle) string {
	return fmt.Sprintf("%s %v", strings.ToLower(s.Color), s.Dash)
}

func (p Profile) strokeProblems() []string {
	median, ok := p.Curves[growth.Median.Key()]
	if !ok {
		return nil
	}
	var problems []string
	if len(median.Dash) > 0 {
		problems = append(problems, fmt.Sprintf("curve %s must be solid, has dash %v", growth.Median, median.Dash))
	}
	owner := map[string]growth.Curve{}
	for _, c := range growth.Curves {
		style, ok := p.Curves[c.Key()]
		if !ok {
			continue
		}
		if c != growth.Median && style.Width >= median.Width {
			problems = append(problems, fmt.Sprintf("curve %s width %d must be below median width %d", c, style.Width, median.Width))
		}
		key := strokeKey(style)
		if prev, dup := owner[key]; dup && band(prev) != band(c) {
			problems = append(problems, fmt.Sprintf("curves %s and %s share colour and dash", prev, c))
			continue
		}
		owner[key] = c
	}
	return problems
}

// withDefaults fills the optional fields a profile file may omit.
func (p Profile) withDefaults() Profile {
	if p.Attribute == "" {
		p.Attribute = DefaultAttribute
	}
	return p
}
