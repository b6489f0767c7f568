package migrate

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

// DefaultColumnType is used for scalar properties deployed without a db type
const DefaultColumnType = "varchar(255)"

// ModelBuilder builds the target schema model from bean descriptors
type ModelBuilder struct {
	logger *zap.Logger
}

// NewModelBuilder creates a model builder
func NewModelBuilder(logger *zap.Logger) *ModelBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelBuilder{logger: logger}
}

// Build returns one table per base table entity, plus a draft table for
// draftable entities. Embedded beans and views have no table.
func (b *ModelBuilder) Build(descriptors []*deploy.BeanDescriptor) *model.ModelContainer {
	byName := make(map[string]*deploy.BeanDescriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name()] = d
	}

	m := model.NewModelContainer()
	for _, d := range descriptors {
		if d.EntityType() != deploy.EntityORM || d.BaseTable() == "" {
			b.logger.Debug("no table for bean",
				zap.String("bean", d.Name()),
				zap.String("type", d.EntityType().String()),
			)
			continue
		}
		table := b.table(d, byName, false)
		m.AddTable(table)

		if d.IsDraftable() && d.DraftTable() != d.BaseTable() {
			m.AddTable(b.table(d, byName, true))
		}
	}
	return m
}

func (b *ModelBuilder) table(d *deploy.BeanDescriptor, byName map[string]*deploy.BeanDescriptor, draft bool) *model.MTable {
	name := d.BaseTable()
	if draft {
		name = d.DraftTable()
	}
	table := model.NewMTable(name)
	table.Comment = d.DbComment()
	table.Draft = draft
	table.WithHistory = d.IsHistorySupport() && !draft

	switch d.IdType() {
	case deploy.IdTypeIdentity:
		table.IdentityType = model.IdentityColumn
	case deploy.IdTypeSequence:
		table.IdentityType = model.IdentitySequence
		table.SequenceName = d.SequenceName()
	}

	for _, p := range d.Properties() {
		if !p.IsPersistable() || p.IsEmbedded() {
			continue
		}
		col := &model.MColumn{
			Name:           p.DbColumn(),
			Type:           p.DbType(),
			NotNull:        p.IsNotNull() || p.IsID(),
			Primary:        p.IsID(),
			Unique:         p.IsUnique(),
			DefaultValue:   p.DefaultValue(),
			HistoryExclude: p.IsHistoryExclude(),
			Comment:        p.DbComment(),
		}
		if col.Type == "" {
			col.Type = DefaultColumnType
		}
		if p.IsID() && table.IdentityType == model.IdentityColumn {
			col.Identity = true
		}
		if p.IsAssocOne() {
			col.References = reference(p, byName, draft)
		}
		table.AddColumn(col)
	}

	for _, idx := range d.IndexDefinitions() {
		// single column unique indexes fold into the column definition
		if idx.Unique && len(idx.Columns) == 1 {
			if col := table.Column(idx.Columns[0]); col != nil {
				col.Unique = true
			}
		}
	}
	return table
}

// reference returns "table.column" for an assoc one property. Draft tables
// reference the draft table of a draftable target.
func reference(p *deploy.BeanProperty, byName map[string]*deploy.BeanDescriptor, draft bool) string {
	target, ok := byName[p.TargetType()]
	if !ok || target.BaseTable() == "" {
		return ""
	}
	idProp := target.IDProperty()
	if idProp == nil {
		return ""
	}
	table := target.BaseTable()
	if draft && target.IsDraftable() {
		table = target.DraftTable()
	}
	return table + "." + idProp.DbColumn()
}
