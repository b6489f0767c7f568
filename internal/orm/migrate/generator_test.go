package migrate

import (
	"errors"
	"strings"
	"testing"

	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
	"github.com/conduit-lang/ebean/internal/orm/migrate/platform"
)

func TestGenerator_Generate_CreateTables(t *testing.T) {
	g := NewGenerator(platform.NewPostgresDdl())

	w, changes, err := g.Generate(nil, containerOf(orderTable(), customerTable()))
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d", len(changes))
	}

	script := w.ApplyScript()
	customer := strings.Index(script, "create table o_customer")
	order := strings.Index(script, "create table o_order")
	fk := strings.Index(script, "add constraint fk_o_order_customer_id")
	if customer < 0 || order < 0 || fk < 0 {
		t.Fatalf("Missing statements in:\n%s", script)
	}
	if fk < customer || fk < order {
		t.Error("Foreign keys should follow all create table statements")
	}

	if !w.IsDropEmpty() {
		t.Error("Creating tables should not produce drop statements")
	}
	if !strings.Contains(w.RollbackScript(), "drop table if exists o_order cascade") {
		t.Errorf("Expected rollback to drop o_order, got:\n%s", w.RollbackScript())
	}
}

func TestGenerator_Generate_DropGoesToDropScript(t *testing.T) {
	g := NewGenerator(platform.NewPostgresDdl())

	w, _, err := g.Generate(containerOf(customerTable(), orderTable()), containerOf(customerTable()))
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if !w.IsApplyEmpty() {
		t.Errorf("Expected empty apply, got:\n%s", w.ApplyScript())
	}
	drop := w.DropScript()
	if !strings.HasPrefix(drop, "alter table o_order drop constraint if exists fk_o_order_customer_id") {
		t.Errorf("Expected foreign key drop first, got:\n%s", drop)
	}
	if !strings.Contains(drop, "drop table if exists o_order cascade") {
		t.Errorf("Expected drop table, got:\n%s", drop)
	}
}

func TestGenerator_Generate_AlterNotSupported(t *testing.T) {
	g := NewGenerator(platform.NewSQLiteDdl())
	newTable := customerTable()
	newTable.Column("name").Type = "varchar(50)"

	_, _, err := g.Generate(containerOf(customerTable()), containerOf(newTable))
	if !errors.Is(err, platform.ErrNotSupported) {
		t.Fatalf("Expected ErrNotSupported, got %v", err)
	}
}

func TestGenerator_Generate_AddColumnRegeneratesHistory(t *testing.T) {
	g := NewGenerator(platform.NewPostgresDdl())

	current := customerTable()
	current.WithHistory = true
	target := customerTable()
	target.WithHistory = true
	target.AddColumn(&model.MColumn{Name: "email", Type: "varchar(100)"})

	w, _, err := g.Generate(containerOf(current), containerOf(target))
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	history := w.ApplyHistory().String()
	if !strings.Contains(history, "alter table o_customer_history add column email varchar(100)") {
		t.Errorf("Expected history column, got:\n%s", history)
	}
	if !strings.Contains(history, "insert into o_customer_history (sys_period,id, name, email)") {
		t.Errorf("Expected trigger to include the new column, got:\n%s", history)
	}
}

func TestGenerator_GenerateMigration(t *testing.T) {
	g := NewGenerator(platform.NewPostgresDdl(), WithConfiguration(&model.MConfiguration{Terminator: ";"}))

	m, err := g.GenerateMigration(nil, containerOf(customerTable()), "1.0", "")
	if err != nil {
		t.Fatalf("GenerateMigration() failed: %v", err)
	}
	if m == nil {
		t.Fatal("Expected a migration")
	}
	if m.Name != "add_o_customer" || m.Version != "1.0" {
		t.Errorf("Unexpected migration %s", m.FileName())
	}
	if m.Up == "" || m.Down == "" || m.Drop != "" {
		t.Errorf("Expected apply and rollback only, got up=%q down=%q drop=%q", m.Up, m.Down, m.Drop)
	}
	if m.Breaking {
		t.Error("Creating a table should not be breaking")
	}

	none, err := g.GenerateMigration(containerOf(customerTable()), containerOf(customerTable()), "1.1", "")
	if err != nil {
		t.Fatalf("GenerateMigration() failed: %v", err)
	}
	if none != nil {
		t.Error("Expected no migration for identical models")
	}
}

func TestGenerator_GenerateMigration_Flags(t *testing.T) {
	g := NewGenerator(platform.NewMySQLDdl())

	m, err := g.GenerateMigration(containerOf(customerTable(), orderTable()), containerOf(customerTable()), "1.3", "Remove orders")
	if err != nil {
		t.Fatalf("GenerateMigration() failed: %v", err)
	}
	if m.Name != "remove_orders" {
		t.Errorf("Expected sanitized name, got %s", m.Name)
	}
	if !m.Breaking || !m.DataLoss {
		t.Error("Dropping a table should flag breaking and data loss")
	}
	if m.Up != "" || m.Drop == "" {
		t.Errorf("Expected a drop only migration, got up=%q", m.Up)
	}
}

func TestNewGenerator_KeepsCallerConfiguration(t *testing.T) {
	cfg := &model.MConfiguration{Terminator: ";"}
	pg := platform.NewPostgresDdl()
	mysql := platform.NewMySQLDdl()

	first := NewGenerator(pg, WithConfiguration(cfg))
	second := NewGenerator(mysql, WithConfiguration(cfg))

	if cfg.Platform != "" {
		t.Errorf("Caller configuration was modified, platform = %q", cfg.Platform)
	}
	if first.config.Platform != pg.Name() {
		t.Errorf("Expected platform %q, got %q", pg.Name(), first.config.Platform)
	}
	if second.config.Platform != mysql.Name() {
		t.Errorf("Expected platform %q, got %q", mysql.Name(), second.config.Platform)
	}
	if second.config.Terminator != ";" {
		t.Errorf("Expected terminator to be kept, got %q", second.config.Terminator)
	}
}
