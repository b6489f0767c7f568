package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/ebean/internal/orm/migrate/ddl"
	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

func TestScriptWriter_WritesNonEmptyScripts(t *testing.T) {
	dir := t.TempDir()
	w := ddl.NewDefaultWrite()
	w.Apply().AppendStatement("create table a (id bigint)")
	w.Rollback().AppendStatement("drop table a")

	written, err := NewScriptWriter(dir).Write(NewMigration("1.0", "init", w))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "1.0__init.sql"),
		filepath.Join(dir, "rollback", "1.0__init.sql"),
	}, written)

	_, err = os.Stat(filepath.Join(dir, "drop", "1.0__init.sql"))
	assert.True(t, os.IsNotExist(err))
}

func TestScriptWriter_EmptyMigrationWritesNothing(t *testing.T) {
	dir := t.TempDir()

	written, err := NewScriptWriter(dir).Write(NewMigration("1.0", "nothing", ddl.NewDefaultWrite()))
	require.NoError(t, err)
	assert.Empty(t, written)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	writer := NewScriptWriter(dir)

	for _, m := range []*Migration{
		{Version: "1.10", Name: "tenth", Up: "create table j (id bigint);\n", Down: "drop table j;\n"},
		{Version: "1.2", Name: "second", Up: "create table b (id bigint);\n", Drop: "drop table old;\n"},
		{Version: "1.0", Name: "init", Up: "create table a (id bigint);\n"},
	} {
		_, err := writer.Write(m)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0644))

	migrations, err := LoadMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, "1.0", migrations[0].Version)
	assert.Equal(t, "1.2", migrations[1].Version)
	assert.Equal(t, "1.10", migrations[2].Version)

	assert.Equal(t, "tenth", migrations[2].Name)
	assert.Equal(t, "drop table j;\n", migrations[2].Down)
	assert.Equal(t, "drop table old;\n", migrations[1].Drop)
	assert.Equal(t, Checksum("create table a (id bigint);\n"), migrations[0].Checksum)
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	migrations, err := LoadMigrations(filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestVersionsAndCurrentModel(t *testing.T) {
	dir := t.TempDir()
	writer := NewScriptWriter(dir)

	first := containerOf(customerTable())
	second := containerOf(customerTable(), orderTable())

	_, err := writer.WriteModel("1.0", first)
	require.NoError(t, err)
	_, err = writer.WriteModel("1.1", second)
	require.NoError(t, err)
	_, err = writer.Write(&Migration{Version: "1.1", Name: "orders", Up: "create table o_order (id bigint);\n"})
	require.NoError(t, err)

	versions, err := Versions(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1.1", "1.0", "1.1"}, versions)
	assert.Equal(t, "1.2", NextVersion(versions))

	current, err := LoadCurrentModel(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Len())
	assert.NotNil(t, current.Table("o_order"))
}

func TestLoadCurrentModel_Empty(t *testing.T) {
	current, err := LoadCurrentModel(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, current.Len())
}

func TestSplitStatements(t *testing.T) {
	script := "create table a (\n  id bigint\n);\n\n" +
		"-- comment\n" +
		"create or replace function a_history_version() returns trigger as $$\n" +
		"begin\n  insert into a_history (id) values (OLD.id);\n  return new;\nend;\n$$ LANGUAGE plpgsql;\n\n" +
		"create trigger a_history_upd before update on a for each row begin\n" +
		"    insert into a_history (id) values (OLD.id);\n" +
		"    set NEW.sys_period_start = now(6);\nend;\n" +
		"drop view if exists a_with_history;\n"

	stmts := SplitStatements(script)
	require.Len(t, stmts, 4)
	assert.Equal(t, "create table a (\n  id bigint\n)", stmts[0])
	assert.Contains(t, stmts[1], "return new;\nend;\n$$ LANGUAGE plpgsql")
	assert.True(t, len(stmts[2]) > 0 && stmts[2][len(stmts[2])-3:] == "end")
	assert.Equal(t, "drop view if exists a_with_history", stmts[3])
}

func TestSplitStatements_Unterminated(t *testing.T) {
	assert.Equal(t, []string{"select 1", "select 2"}, SplitStatements("select 1;\nselect 2"))
	assert.Empty(t, SplitStatements("\n\n"))
	assert.Empty(t, SplitStatements(model.NewMConfiguration().Terminator))
}
