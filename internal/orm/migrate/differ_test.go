package migrate

import (
	"strings"
	"testing"

	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

func customerTable() *model.MTable {
	t := model.NewMTable("o_customer")
	t.IdentityType = model.IdentityColumn
	t.AddColumn(&model.MColumn{Name: "id", Type: "bigint", Primary: true, Identity: true})
	t.AddColumn(&model.MColumn{Name: "name", Type: "varchar(255)", NotNull: true})
	return t
}

func orderTable() *model.MTable {
	t := model.NewMTable("o_order")
	t.IdentityType = model.IdentityColumn
	t.AddColumn(&model.MColumn{Name: "id", Type: "bigint", Primary: true, Identity: true})
	t.AddColumn(&model.MColumn{Name: "customer_id", Type: "bigint", References: "o_customer.id"})
	return t
}

func containerOf(tables ...*model.MTable) *model.ModelContainer {
	m := model.NewModelContainer()
	for _, t := range tables {
		m.AddTable(t)
	}
	return m
}

func TestDiffer_ComputeDiff_AddTable(t *testing.T) {
	changes := NewDiffer(nil, containerOf(customerTable())).ComputeDiff()

	if len(changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(changes))
	}
	change := changes[0]
	if change.Type != ChangeAddTable {
		t.Errorf("Expected ChangeAddTable, got %v", change.Type)
	}
	if change.TableName() != "o_customer" {
		t.Errorf("Expected table 'o_customer', got %s", change.TableName())
	}
	if change.Breaking || change.DataLoss {
		t.Error("Adding a table should not be breaking or lose data")
	}
}

func TestDiffer_ComputeDiff_DropTable(t *testing.T) {
	changes := NewDiffer(containerOf(customerTable()), nil).ComputeDiff()

	if len(changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(changes))
	}
	if changes[0].Type != ChangeDropTable {
		t.Errorf("Expected ChangeDropTable, got %v", changes[0].Type)
	}
	if !changes[0].Breaking || !changes[0].DataLoss {
		t.Error("Dropping a table should be breaking and lose data")
	}
}

func TestDiffer_ComputeDiff_Sorted(t *testing.T) {
	target := containerOf(orderTable(), customerTable())
	changes := NewDiffer(nil, target).ComputeDiff()

	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d", len(changes))
	}
	if changes[0].TableName() != "o_customer" || changes[1].TableName() != "o_order" {
		t.Errorf("Expected tables in sorted order, got %s, %s", changes[0].TableName(), changes[1].TableName())
	}
}

func TestDiffer_ComputeDiff_Columns(t *testing.T) {
	oldTable := customerTable()
	oldTable.AddColumn(&model.MColumn{Name: "notes", Type: "varchar(100)"})

	newTable := customerTable()
	newTable.AddColumn(&model.MColumn{Name: "email", Type: "varchar(100)"})
	newTable.AddColumn(&model.MColumn{Name: "status", Type: "varchar(10)", NotNull: true})
	newTable.Column("name").Type = "varchar(100)"

	changes := NewDiffer(containerOf(oldTable), containerOf(newTable)).ComputeDiff()

	var types []string
	for _, c := range changes {
		types = append(types, c.Type.String()+":"+c.ColumnName())
	}
	got := strings.Join(types, ",")
	want := "add_column:email,add_column:status,drop_column:notes,alter_column:name"
	if got != want {
		t.Fatalf("Expected %s, got %s", want, got)
	}

	if changes[0].Breaking {
		t.Error("Adding a nullable column should not be breaking")
	}
	if !changes[1].Breaking {
		t.Error("Adding a not null column without default should be breaking")
	}
	if !changes[2].DataLoss {
		t.Error("Dropping a column should lose data")
	}
	if !changes[3].DataLoss {
		t.Error("Shrinking a varchar should lose data")
	}
	if changes[3].Breaking {
		t.Error("Shrinking a varchar of the same base type should not be breaking")
	}
}

func TestDiffer_ComputeDiff_History(t *testing.T) {
	plain := customerTable()
	withHistory := customerTable()
	withHistory.WithHistory = true
	withHistory.AddColumn(&model.MColumn{Name: "email", Type: "varchar(100)"})

	changes := NewDiffer(containerOf(plain), containerOf(withHistory)).ComputeDiff()
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d", len(changes))
	}
	if changes[len(changes)-1].Type != ChangeAddHistory {
		t.Errorf("Expected history to be added last, got %v", changes[len(changes)-1].Type)
	}

	changes = NewDiffer(containerOf(withHistory), containerOf(plain)).ComputeDiff()
	if changes[0].Type != ChangeDropHistory {
		t.Errorf("Expected history to be dropped first, got %v", changes[0].Type)
	}
}

func TestDiffer_ComputeDiff_NoChanges(t *testing.T) {
	changes := NewDiffer(containerOf(customerTable()), containerOf(customerTable())).ComputeDiff()
	if len(changes) != 0 {
		t.Errorf("Expected no changes, got %d", len(changes))
	}
}

func TestGenerateMigrationName(t *testing.T) {
	tests := []struct {
		name    string
		changes []SchemaChange
		want    string
	}{
		{"none", nil, "no_changes"},
		{
			"add table",
			[]SchemaChange{{Type: ChangeAddTable, Table: customerTable()}},
			"add_o_customer",
		},
		{
			"add and drop column",
			[]SchemaChange{
				{Type: ChangeAddColumn, Table: customerTable(), NewColumn: &model.MColumn{Name: "email"}},
				{Type: ChangeDropColumn, Table: customerTable(), OldColumn: &model.MColumn{Name: "notes"}},
			},
			"add_o_customer_email_and_drop_o_customer_notes",
		},
		{
			"history",
			[]SchemaChange{{Type: ChangeAddHistory, Table: customerTable()}},
			"add_o_customer_history",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateMigrationName(tt.changes); got != tt.want {
				t.Errorf("GenerateMigrationName() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGenerateMigrationName_ManyItems(t *testing.T) {
	var changes []SchemaChange
	for i := 0; i < 5; i++ {
		changes = append(changes, SchemaChange{Type: ChangeAddTable, Table: model.NewMTable("t" + string(rune('a'+i)))})
	}
	if got := GenerateMigrationName(changes); got != "add_5_items" {
		t.Errorf("Expected add_5_items, got %s", got)
	}
}
