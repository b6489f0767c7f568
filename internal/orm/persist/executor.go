// Package persist inserts, updates and deletes beans, running the persist
// controllers and listeners of their descriptors and mirroring changes to the
// doc store.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/cache"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/dialect"
	"github.com/conduit-lang/ebean/internal/orm/docstore"
)

// DescriptorLookup resolves association targets. *deploy.Manager satisfies it.
type DescriptorLookup interface {
	Get(name string) (*deploy.BeanDescriptor, bool)
}

// Executor persists beans
type Executor struct {
	tx        *TxManager
	dialect   dialect.Dialect
	lookup    DescriptorLookup
	queue     docstore.Queue
	updater   docstore.Updater
	cache     *cache.BeanCache
	logger    *zap.Logger
	changeLog *zap.Logger
	now       func() time.Time
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger. Change log entries go to its "changelog" child.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLookup resolves associated beans to their ids
func WithLookup(lookup DescriptorLookup) Option {
	return func(e *Executor) { e.lookup = lookup }
}

// WithDocStoreQueue sets the queue for QUEUE doc store events
func WithDocStoreQueue(q docstore.Queue) Option {
	return func(e *Executor) { e.queue = q }
}

// WithDocStoreUpdater sets the updater for UPDATE doc store events
func WithDocStoreUpdater(u docstore.Updater) Option {
	return func(e *Executor) { e.updater = u }
}

// WithBeanCache evicts updated and deleted beans from the bean cache
func WithBeanCache(bc *cache.BeanCache) Option {
	return func(e *Executor) { e.cache = bc }
}

// WithIsolation sets the isolation level of transactions the executor starts
func WithIsolation(level IsolationLevel) Option {
	return func(e *Executor) { e.tx.level = level }
}

// NewExecutor creates an executor on db
func NewExecutor(db *sql.DB, d dialect.Dialect, opts ...Option) *Executor {
	e := &Executor{
		tx:      NewTxManager(db, ReadCommitted),
		dialect: d,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.changeLog = e.logger.Named("changelog")
	return e
}

// Insert inserts a new bean, assigning its id
func (e *Executor) Insert(ctx context.Context, desc *deploy.BeanDescriptor, b bean.EntityBean) error {
	controller := desc.PersistController()
	if controller != nil && !controller.PreInsert(ctx, b) {
		return fmt.Errorf("%w: insert %s", ErrVetoed, desc.Name())
	}

	ebi := b.EbeanIntercept()
	err := e.tx.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := e.assignID(ctx, tx, desc, b); err != nil {
			return err
		}
		if v := desc.VersionProperty(); v != nil && ebi.Value(v.Name()) == nil {
			ebi.Set(v.Name(), int64(1))
		}
		return e.insert(ctx, tx, desc, b)
	})
	if err != nil {
		return err
	}

	ebi.SetLoaded()
	if pc := ebi.PersistenceContext(); pc != nil {
		pc.Put(desc.Name(), desc.ID(b), b)
	}

	if controller != nil {
		controller.PostInsert(ctx, b)
	}
	if l := desc.PersistListener(); l != nil {
		l.Inserted(b)
	}
	if f := desc.ChangeLogFilter(); f != nil && f.IncludeInsert(b) {
		e.logChange(desc, "insert", b, nil)
	}
	e.docStore(ctx, desc, desc.DocStoreInsertEvent(), docstore.EventIndex, b)
	return nil
}

func (e *Executor) assignID(ctx context.Context, tx *sql.Tx, desc *deploy.BeanDescriptor, b bean.EntityBean) error {
	if desc.IDProperty() == nil || desc.ID(b) != nil {
		return nil
	}
	var gen deploy.IdGenerator
	switch desc.IdType() {
	case deploy.IdTypeSequence:
		gen = desc.IdGenerator()
		if gen == nil {
			gen = deploy.NewSequenceGenerator(tx, e.dialect.Name(), desc.SequenceName())
		}
	case deploy.IdTypeExternal, deploy.IdTypeGenerator:
		gen = desc.IdGenerator()
	}
	if gen == nil {
		return nil
	}
	id, err := gen.NextID(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate id for %s: %w", desc.Name(), err)
	}
	desc.SetID(b, id)
	return nil
}

func (e *Executor) insert(ctx context.Context, tx *sql.Tx, desc *deploy.BeanDescriptor, b bean.EntityBean) error {
	ebi := b.EbeanIntercept()
	idProp := desc.IDProperty()
	identity := desc.IdType() == deploy.IdTypeIdentity && idProp != nil && desc.ID(b) == nil

	var cols []string
	var args []interface{}
	for _, p := range desc.Properties() {
		if !p.IsPersistable() || p.IsEmbedded() || !ebi.IsLoadedProperty(p.Name()) {
			continue
		}
		if identity && p.IsID() {
			continue
		}
		v, err := e.columnValue(p, ebi.Value(p.Name()))
		if err != nil {
			return err
		}
		cols = append(cols, p.DbColumn())
		args = append(args, v)
	}

	var sb strings.Builder
	sb.WriteString("insert into ")
	sb.WriteString(desc.BaseTable())
	if len(cols) == 0 {
		sb.WriteString(" default values")
	} else {
		sb.WriteString(" (" + strings.Join(cols, ", ") + ") values (")
		sb.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
		sb.WriteString(")")
	}

	if identity && e.dialect.Name() == dialect.Postgres.Name() {
		sb.WriteString(" returning " + idProp.DbColumn())
		var id interface{}
		if err := tx.QueryRowContext(ctx, e.dialect.Rebind(sb.String()), args...).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert %s: %w", desc.Name(), ConvertDBError(err))
		}
		ebi.SetLoadedProperty(idProp.Name(), id)
		return nil
	}

	res, err := tx.ExecContext(ctx, e.dialect.Rebind(sb.String()), args...)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", desc.Name(), ConvertDBError(err))
	}
	if !identity {
		return nil
	}

	var id interface{}
	if q := desc.SelectLastInsertedID(); q != "" {
		err = tx.QueryRowContext(ctx, q).Scan(&id)
	} else {
		id, err = res.LastInsertId()
	}
	if err != nil {
		return fmt.Errorf("failed to read generated id of %s: %w", desc.Name(), err)
	}
	ebi.SetLoadedProperty(idProp.Name(), id)
	return nil
}

// Update writes the changed properties of a loaded bean. With update changes
// only off every loaded property is written when anything changed.
func (e *Executor) Update(ctx context.Context, desc *deploy.BeanDescriptor, b bean.EntityBean) error {
	ebi := b.EbeanIntercept()
	id := desc.ID(b)
	if id == nil {
		return fmt.Errorf("%w: update %s", ErrNoID, desc.Name())
	}
	changed := ebi.DirtyProperties()
	if len(changed) == 0 {
		return nil
	}

	controller := desc.PersistController()
	if controller != nil && !controller.PreUpdate(ctx, b) {
		return fmt.Errorf("%w: update %s", ErrVetoed, desc.Name())
	}

	var props []*deploy.BeanProperty
	if desc.IsUpdateChangesOnly() {
		for _, name := range changed {
			if p := desc.Property(name); p != nil {
				props = append(props, p)
			}
		}
	} else {
		for _, p := range desc.Properties() {
			if ebi.IsLoadedProperty(p.Name()) {
				props = append(props, p)
			}
		}
	}

	var sets []string
	var args []interface{}
	for _, p := range props {
		if !p.IsPersistable() || p.IsEmbedded() || p.IsID() || p.IsVersion() {
			continue
		}
		v, err := e.columnValue(p, ebi.Value(p.Name()))
		if err != nil {
			return err
		}
		sets = append(sets, p.DbColumn()+" = ?")
		args = append(args, v)
	}

	version := desc.VersionProperty()
	var oldVersion, newVersion interface{}
	if version != nil && desc.ConcurrencyMode() == deploy.ConcurrencyVersion {
		oldVersion = ebi.Value(version.Name())
		newVersion = nextVersion(oldVersion, e.now())
		sets = append(sets, version.DbColumn()+" = ?")
		args = append(args, newVersion)
	}
	if len(sets) == 0 {
		return nil
	}

	where := desc.IDProperty().DbColumn() + " = ?"
	args = append(args, id)
	if oldVersion != nil {
		where += " and " + version.DbColumn() + " = ?"
		args = append(args, oldVersion)
	}
	stmt := fmt.Sprintf("update %s set %s where %s", desc.BaseTable(), strings.Join(sets, ", "), where)

	err := e.tx.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, e.dialect.Rebind(stmt), args...)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", desc.Name(), ConvertDBError(err))
		}
		return checkRows(res, desc, id, oldVersion != nil)
	})
	if err != nil {
		return err
	}

	if newVersion != nil {
		ebi.SetLoadedProperty(version.Name(), newVersion)
	}
	ebi.SetLoaded()
	e.evict(ctx, desc, id)

	if controller != nil {
		controller.PostUpdate(ctx, b)
	}
	if l := desc.PersistListener(); l != nil {
		l.Updated(b, changed)
	}
	if f := desc.ChangeLogFilter(); f != nil && f.IncludeUpdate(b, changed) {
		e.logChange(desc, "update", b, changed)
	}
	e.docStore(ctx, desc, desc.DocStoreUpdateEvent(), docstore.EventIndex, b)
	return nil
}

// Delete deletes a bean by id, checking the version when the bean has one
func (e *Executor) Delete(ctx context.Context, desc *deploy.BeanDescriptor, b bean.EntityBean) error {
	ebi := b.EbeanIntercept()
	id := desc.ID(b)
	if id == nil {
		return fmt.Errorf("%w: delete %s", ErrNoID, desc.Name())
	}

	controller := desc.PersistController()
	if controller != nil && !controller.PreDelete(ctx, b) {
		return fmt.Errorf("%w: delete %s", ErrVetoed, desc.Name())
	}

	where := desc.IDProperty().DbColumn() + " = ?"
	args := []interface{}{id}
	versioned := false
	if v := desc.VersionProperty(); v != nil && desc.ConcurrencyMode() == deploy.ConcurrencyVersion {
		if old := ebi.Value(v.Name()); old != nil {
			where += " and " + v.DbColumn() + " = ?"
			args = append(args, old)
			versioned = true
		}
	}
	stmt := fmt.Sprintf("delete from %s where %s", desc.BaseTable(), where)

	err := e.tx.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, e.dialect.Rebind(stmt), args...)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", desc.Name(), ConvertDBError(err))
		}
		return checkRows(res, desc, id, versioned)
	})
	if err != nil {
		return err
	}

	ebi.SetDeleted()
	if pc := ebi.PersistenceContext(); pc != nil {
		pc.Remove(desc.Name(), id)
	}
	e.evict(ctx, desc, id)

	if controller != nil {
		controller.PostDelete(ctx, b)
	}
	if l := desc.PersistListener(); l != nil {
		l.Deleted(b)
	}
	if f := desc.ChangeLogFilter(); f != nil && f.IncludeDelete(b) {
		e.logChange(desc, "delete", b, nil)
	}
	e.docStore(ctx, desc, desc.DocStoreDeleteEvent(), docstore.EventDelete, b)
	return nil
}

func checkRows(res sql.Result, desc *deploy.BeanDescriptor, id interface{}, versioned bool) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows of %s: %w", desc.Name(), err)
	}
	if n > 0 {
		return nil
	}
	if versioned {
		return fmt.Errorf("%w: %s id %v", ErrOptimisticLock, desc.Name(), id)
	}
	return fmt.Errorf("%w: %s id %v", ErrNotFound, desc.Name(), id)
}

// nextVersion increments numeric versions and stamps time versions
func nextVersion(old interface{}, now time.Time) interface{} {
	switch v := old.(type) {
	case int64:
		return v + 1
	case int:
		return int64(v) + 1
	case int32:
		return int64(v) + 1
	case time.Time:
		return now
	case nil:
		return int64(1)
	default:
		return old
	}
}

// columnValue converts a property value to its column value, mapping
// associated beans to their ids
func (e *Executor) columnValue(p *deploy.BeanProperty, v interface{}) (interface{}, error) {
	other, ok := v.(bean.EntityBean)
	if !ok || !p.IsAssocOne() {
		return v, nil
	}
	if e.lookup == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedAssociation, p.Name())
	}
	target, found := e.lookup.Get(p.TargetType())
	if !found {
		return nil, fmt.Errorf("%w: %s targets unknown %s", ErrUnresolvedAssociation, p.Name(), p.TargetType())
	}
	return target.ID(other), nil
}

func (e *Executor) evict(ctx context.Context, desc *deploy.BeanDescriptor, id interface{}) {
	if e.cache == nil || !desc.IsBeanCaching() {
		return
	}
	if err := e.cache.Remove(ctx, desc, id); err != nil {
		e.logger.Warn("failed to evict bean from cache",
			zap.String("bean", desc.Name()),
			zap.Any("id", id),
			zap.Error(err),
		)
	}
}

// documentValues returns the persistable values with associations as ids,
// limited to the root properties of the doc store paths when declared
func (e *Executor) documentValues(desc *deploy.BeanDescriptor, b bean.EntityBean) map[string]interface{} {
	ebi := b.EbeanIntercept()
	paths := desc.DocStorePathProperties()
	values := make(map[string]interface{})
	for _, p := range desc.Properties() {
		if !p.IsPersistable() || !ebi.IsLoadedProperty(p.Name()) {
			continue
		}
		if paths != nil && !paths.IsEmpty() && !paths.IncludesProperty("", p.Name()) {
			continue
		}
		v, err := e.columnValue(p, ebi.Value(p.Name()))
		if err != nil {
			continue
		}
		values[p.Name()] = v
	}
	return values
}

func (e *Executor) logChange(desc *deploy.BeanDescriptor, event string, b bean.EntityBean, changed []string) {
	fields := []zap.Field{
		zap.String("bean", desc.Name()),
		zap.String("event", event),
		zap.Any("id", desc.ID(b)),
	}
	if changed != nil {
		fields = append(fields, zap.Strings("changed", changed))
	}
	if event != "delete" {
		fields = append(fields, zap.Any("values", e.documentValues(desc, b)))
	}
	e.changeLog.Info("change", fields...)
}

// docStore mirrors a persist event. Doc store failures are logged and do not
// fail the persist, which has already committed.
func (e *Executor) docStore(ctx context.Context, desc *deploy.BeanDescriptor, mode deploy.DocStoreMode, event docstore.Event, b bean.EntityBean) {
	if mode == deploy.DocStoreIgnore || mode == deploy.DocStoreDefault {
		return
	}
	entry := docstore.Entry{
		QueueID:  desc.DocStoreQueueID(),
		BeanType: desc.Name(),
		ID:       desc.ID(b),
		Event:    event,
		Time:     e.now().UTC(),
	}
	if event == docstore.EventIndex {
		entry.Values = e.documentValues(desc, b)
	}

	var err error
	switch mode {
	case deploy.DocStoreQueue:
		if e.queue == nil {
			e.logger.Warn("doc store queue not configured", zap.String("bean", desc.Name()))
			return
		}
		err = e.queue.Enqueue(ctx, entry)
	case deploy.DocStoreUpdate:
		if e.updater == nil {
			e.logger.Debug("doc store updater not configured", zap.String("bean", desc.Name()))
			return
		}
		err = e.updater.Update(ctx, entry)
	}
	if err != nil {
		e.logger.Warn("doc store event failed",
			zap.String("bean", desc.Name()),
			zap.String("mode", mode.String()),
			zap.Any("id", entry.ID),
			zap.Error(err),
		)
	}
}
