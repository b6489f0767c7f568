package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message block
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a multi line message block:
//
//	✗ MIGRATION FAILED: relation "customer" already exists
//
//	   The database was left at version 1.2.
//
//	   Did you mean: postgres?
//
//	   → Check migration status: ebean migrate status
type Message struct {
	Level        Level
	Context      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// Format renders the message
func (m Message) Format() string {
	var b strings.Builder

	var head *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		head, symbol = color.New(color.FgYellow, color.Bold), "!"
	case LevelInfo:
		head, symbol = color.New(color.FgCyan, color.Bold), "i"
	default:
		head, symbol = color.New(color.FgRed, color.Bold), "✗"
	}
	body := color.New(color.FgWhite)
	hint := color.New(color.FgYellow)
	help := color.New(color.FgCyan)
	if m.NoColor {
		for _, c := range []*color.Color{head, body, hint, help} {
			c.DisableColor()
		}
	}

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if m.Consequence != "" {
		b.WriteString("\n")
		body.Fprintf(&b, "   %s\n", m.Consequence)
	}
	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		hint.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range m.HelpCommands {
			help.Fprintf(&b, "   → %s\n", cmd)
		}
	}
	return b.String()
}

// Write writes the formatted message
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// Success formats a success line
func Success(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// MigrationError describes a failed migration command
func MigrationError(problem, consequence string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "migration failed",
		Problem:     problem,
		Consequence: consequence,
		HelpCommands: []string{
			"Check migration status: ebean migrate status",
			"Roll back the last migration: ebean migrate down",
		},
		NoColor: noColor,
	}
}

// UnknownPlatformError describes an unsupported database platform, suggesting close names
func UnknownPlatformError(name string, known []string, noColor bool) Message {
	return Message{
		Level:        LevelError,
		Context:      "configuration error",
		Problem:      fmt.Sprintf("unknown database platform %q", name),
		Suggestions:  FindSimilar(name, known, 3, 3),
		HelpCommands: []string{"Supported platforms: " + strings.Join(known, ", ")},
		NoColor:      noColor,
	}
}

// FindSimilar returns up to max candidates within maxDistance edits of target,
// closest first. Matching ignores case.
func FindSimilar(target string, candidates []string, maxDistance, max int) []string {
	type match struct {
		value    string
		distance int
	}
	var matches []match
	t := strings.ToLower(target)
	for _, c := range candidates {
		if d := levenshtein(t, strings.ToLower(c)); d <= maxDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })

	out := make([]string, 0, max)
	for i := 0; i < len(matches) && i < max; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = minOf(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func minOf(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
