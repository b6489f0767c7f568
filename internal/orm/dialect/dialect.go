// Package dialect holds the runtime SQL differences between database platforms:
// bind variable syntax and id list binding.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect describes how statements are rendered for a platform
type Dialect struct {
	name    string
	bindVar func(i int) string
	// anyArray binds an id list as a single array parameter, "id = any($1)"
	anyArray bool
}

// Postgres binds $1, $2 and id lists as arrays
var Postgres = Dialect{name: "postgres", bindVar: func(i int) string { return fmt.Sprintf("$%d", i) }, anyArray: true}

// SQLServer binds @p1, @p2
var SQLServer = Dialect{name: "sqlserver", bindVar: func(i int) string { return fmt.Sprintf("@p%d", i) }}

// Common binds ? for mysql, sqlite, h2 and db2
var Common = Dialect{name: "common", bindVar: func(int) string { return "?" }}

// ForPlatform returns the dialect for a platform name
func ForPlatform(name string) Dialect {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres
	case "sqlserver", "mssql":
		return SQLServer
	default:
		return Common
	}
}

// Name returns the dialect name
func (d Dialect) Name() string {
	return d.name
}

// BindVar returns the placeholder for the i-th (1 based) bind value
func (d Dialect) BindVar(i int) string {
	if d.bindVar == nil {
		return "?"
	}
	return d.bindVar(i)
}

// AnyArray reports whether id lists bind as one array parameter
func (d Dialect) AnyArray() bool {
	return d.anyArray
}

// Rebind replaces each ? in the query with the dialect placeholder, numbering
// from 1. A ? inside a quoted literal or identifier is left alone.
func (d Dialect) Rebind(query string) string {
	if d.bindVar == nil || d.name == Common.name || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	n := 0
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			// a doubled quote closes and reopens the span
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			n++
			b.WriteString(d.bindVar(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
