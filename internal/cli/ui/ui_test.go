package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "VERSION", "NAME", "STATE")
	table.AddRow("1.0", "initial", "applied")
	table.AddRow("1.1", "add_customer_email")

	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	assert.Equal(t, "VERSION  NAME                STATE", lines[0])
	assert.Equal(t, "1.0      initial             applied", lines[2])
	assert.Equal(t, "1.1      add_customer_email", lines[3])
	assert.Equal(t, 2, table.Len())
}

func TestKeyValueTable_Render(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Platform", "postgres")
	kv.AddRow("Dir", "dbmigration")
	kv.Render()

	assert.Equal(t, "Platform: postgres\nDir:      dbmigration\n", buf.String())
}

func TestMessage_Format(t *testing.T) {
	msg := MigrationError("relation \"customer\" already exists", "The database was left at version 1.2.", true)
	out := msg.Format()

	assert.Contains(t, out, "✗ MIGRATION FAILED: relation \"customer\" already exists")
	assert.Contains(t, out, "The database was left at version 1.2.")
	assert.Contains(t, out, "→ Check migration status: ebean migrate status")
	assert.NotContains(t, out, "Did you mean")
}

func TestUnknownPlatformError(t *testing.T) {
	msg := UnknownPlatformError("postgress", []string{"db2", "h2", "mysql", "postgres", "sqlite", "sqlserver"}, true)
	assert.Equal(t, []string{"postgres"}, msg.Suggestions)

	var buf bytes.Buffer
	msg.Write(&buf)
	assert.Contains(t, buf.String(), "Did you mean: postgres?")
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"sqlite", "sqlserver", "mysql"}

	assert.Equal(t, []string{"sqlite"}, FindSimilar("SQLite3", candidates, 1, 3))
	assert.Empty(t, FindSimilar("oracle", candidates, 2, 3))
	assert.Len(t, FindSimilar("sql", candidates, 10, 2), 2)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"postgres", "postgres", 0},
		{"h2", "db2", 2},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSuccess(t *testing.T) {
	assert.Equal(t, "✓ applied 2 migrations", Success("applied 2 migrations", true))
}
