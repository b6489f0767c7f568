package expr

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/zeebo/xxh3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Expression is a predicate of a where clause
type Expression interface {
	// AddSQL appends the SQL with ? placeholders
	AddSQL(r *Request)
	// AddBindValues adds the values for the placeholders written by AddSQL
	AddBindValues(r *Request)
	// QueryPlanHash adds the parts that determine the SQL, not the bind values
	QueryPlanHash(b *PlanBuilder)
	// QueryBindHash hashes the bind values
	QueryBindHash() uint64
	// IsSameByPlan reports whether other renders the same SQL
	IsSameByPlan(other Expression) bool
	// IsSameByBind reports whether other, already same by plan, binds the same values
	IsSameByBind(other Expression) bool
}

func bindHash(values ...interface{}) uint64 {
	var b strings.Builder
	for _, v := range values {
		fmt.Fprintf(&b, "%v\x00", v)
	}
	return xxh3.HashString(b.String())
}

// IdEqExpression matches a single id
type IdEqExpression struct {
	value interface{}
}

// IdEq matches the bean with the given id
func IdEq(value interface{}) *IdEqExpression {
	return &IdEqExpression{value: value}
}

func (e *IdEqExpression) Value() interface{} { return e.value }

func (e *IdEqExpression) AddSQL(r *Request) {
	r.Append(r.IDColumn()).Append(" = ?")
}

func (e *IdEqExpression) AddBindValues(r *Request) {
	r.AddBindValue(e.value)
}

func (e *IdEqExpression) QueryPlanHash(b *PlanBuilder) {
	b.Add("IdEq").Bind(1)
}

func (e *IdEqExpression) QueryBindHash() uint64 {
	return bindHash(e.value)
}

func (e *IdEqExpression) IsSameByPlan(other Expression) bool {
	_, ok := other.(*IdEqExpression)
	return ok
}

func (e *IdEqExpression) IsSameByBind(other Expression) bool {
	that, ok := other.(*IdEqExpression)
	return ok && fmt.Sprint(e.value) == fmt.Sprint(that.value)
}

// IdInExpression matches a list of ids
type IdInExpression struct {
	ids []interface{}
}

// IdIn matches the beans with any of the given ids
func IdIn(ids ...interface{}) *IdInExpression {
	return &IdInExpression{ids: ids}
}

// IDs returns the id values
func (e *IdInExpression) IDs() []interface{} { return e.ids }

// AddSQL renders "id = any(?)" where the dialect binds arrays, else "id in (?,?,...)".
// An empty list renders a predicate that is always false.
func (e *IdInExpression) AddSQL(r *Request) {
	if len(e.ids) == 0 {
		r.Append("1=0")
		return
	}
	if r.Dialect().AnyArray() {
		r.Append(r.IDColumn()).Append(" = any(?)")
		return
	}
	r.Append(r.IDColumn()).Append(" in (")
	r.Append(strings.TrimSuffix(strings.Repeat("?,", len(e.ids)), ","))
	r.Append(")")
}

func (e *IdInExpression) AddBindValues(r *Request) {
	if len(e.ids) == 0 {
		return
	}
	if r.Dialect().AnyArray() {
		r.AddBindValue(arrayOf(e.ids))
		return
	}
	for _, id := range e.ids {
		r.AddBindValue(id)
	}
}

// arrayOf returns a typed postgres array for homogeneous id lists
func arrayOf(ids []interface{}) interface{} {
	ints := make(pq.Int64Array, 0, len(ids))
	strs := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		switch v := id.(type) {
		case int64:
			ints = append(ints, v)
		case int:
			ints = append(ints, int64(v))
		case int32:
			ints = append(ints, int64(v))
		case string:
			strs = append(strs, v)
		case fmt.Stringer:
			strs = append(strs, v.String())
		}
	}
	switch {
	case len(ints) == len(ids):
		return ints
	case len(strs) == len(ids):
		return strs
	default:
		return pq.Array(ids)
	}
}

func (e *IdInExpression) QueryPlanHash(b *PlanBuilder) {
	b.Add("IdIn").Bind(len(e.ids))
}

func (e *IdInExpression) QueryBindHash() uint64 {
	return bindHash(e.ids...)
}

func (e *IdInExpression) IsSameByPlan(other Expression) bool {
	that, ok := other.(*IdInExpression)
	return ok && len(e.ids) == len(that.ids)
}

func (e *IdInExpression) IsSameByBind(other Expression) bool {
	that, ok := other.(*IdInExpression)
	return ok && e.QueryBindHash() == that.QueryBindHash()
}

// EqExpression is property = value
type EqExpression struct {
	property string
	value    interface{}
}

// Eq matches a property value. A nil value renders "is null".
func Eq(property string, value interface{}) *EqExpression {
	return &EqExpression{property: property, value: value}
}

func (e *EqExpression) AddSQL(r *Request) {
	if e.value == nil {
		r.Append(r.Column(e.property)).Append(" is null")
		return
	}
	r.Append(r.Column(e.property)).Append(" = ?")
}

func (e *EqExpression) AddBindValues(r *Request) {
	if e.value != nil {
		r.AddBindValue(e.value)
	}
}

func (e *EqExpression) QueryPlanHash(b *PlanBuilder) {
	b.Add("Eq").Add(e.property)
	if e.value == nil {
		b.Add("null")
		return
	}
	b.Bind(1)
}

func (e *EqExpression) QueryBindHash() uint64 {
	return bindHash(e.value)
}

func (e *EqExpression) IsSameByPlan(other Expression) bool {
	that, ok := other.(*EqExpression)
	return ok && e.property == that.property && (e.value == nil) == (that.value == nil)
}

func (e *EqExpression) IsSameByBind(other Expression) bool {
	that, ok := other.(*EqExpression)
	return ok && fmt.Sprint(e.value) == fmt.Sprint(that.value)
}

var lower = cases.Lower(language.Und)

// IEqExpression is a case insensitive equal, lower(property) = lower(value)
type IEqExpression struct {
	property string
	value    string
}

// IEq matches a property case insensitively. The value is lower cased once here.
func IEq(property string, value interface{}) *IEqExpression {
	return &IEqExpression{property: property, value: lower.String(fmt.Sprint(value))}
}

// Value returns the lower cased bind value
func (e *IEqExpression) Value() string { return e.value }

func (e *IEqExpression) AddSQL(r *Request) {
	r.Append("lower(").Append(r.Column(e.property)).Append(") = ?")
}

func (e *IEqExpression) AddBindValues(r *Request) {
	r.AddBindValue(e.value)
}

func (e *IEqExpression) QueryPlanHash(b *PlanBuilder) {
	b.Add("IEq").Add(e.property).Bind(1)
}

func (e *IEqExpression) QueryBindHash() uint64 {
	return xxh3.HashString(e.value)
}

func (e *IEqExpression) IsSameByPlan(other Expression) bool {
	that, ok := other.(*IEqExpression)
	return ok && e.property == that.property
}

func (e *IEqExpression) IsSameByBind(other Expression) bool {
	that, ok := other.(*IEqExpression)
	return ok && e.value == that.value
}

// RawExpression is SQL added verbatim with its bind values
type RawExpression struct {
	sql  string
	args []interface{}
}

// Raw adds SQL with ? placeholders
func Raw(sql string, args ...interface{}) *RawExpression {
	return &RawExpression{sql: sql, args: args}
}

func (e *RawExpression) AddSQL(r *Request) {
	r.Append(e.sql)
}

func (e *RawExpression) AddBindValues(r *Request) {
	for _, a := range e.args {
		r.AddBindValue(a)
	}
}

func (e *RawExpression) QueryPlanHash(b *PlanBuilder) {
	b.Add("Raw").Add(e.sql).Bind(len(e.args))
}

func (e *RawExpression) QueryBindHash() uint64 {
	return bindHash(e.args...)
}

func (e *RawExpression) IsSameByPlan(other Expression) bool {
	that, ok := other.(*RawExpression)
	return ok && e.sql == that.sql
}

func (e *RawExpression) IsSameByBind(other Expression) bool {
	that, ok := other.(*RawExpression)
	return ok && e.QueryBindHash() == that.QueryBindHash()
}
