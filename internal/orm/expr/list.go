package expr

// List is a conjunction of expressions
type List struct {
	exprs []Expression
}

// NewList creates an empty list
func NewList() *List {
	return &List{}
}

// Add appends an expression
func (l *List) Add(e Expression) *List {
	l.exprs = append(l.exprs, e)
	return l
}

func (l *List) IdEq(value interface{}) *List             { return l.Add(IdEq(value)) }
func (l *List) IdIn(ids ...interface{}) *List            { return l.Add(IdIn(ids...)) }
func (l *List) Eq(property string, v interface{}) *List  { return l.Add(Eq(property, v)) }
func (l *List) IEq(property string, v interface{}) *List { return l.Add(IEq(property, v)) }
func (l *List) Raw(sql string, args ...interface{}) *List {
	return l.Add(Raw(sql, args...))
}

// Expressions returns the expressions in order
func (l *List) Expressions() []Expression {
	return l.exprs
}

// IsEmpty reports whether the list has no expressions
func (l *List) IsEmpty() bool {
	return len(l.exprs) == 0
}

// AddSQL renders the expressions joined with "and"
func (l *List) AddSQL(r *Request) {
	for i, e := range l.exprs {
		if i > 0 {
			r.Append(" and ")
		}
		e.AddSQL(r)
	}
}

// AddBindValues adds the bind values of every expression
func (l *List) AddBindValues(r *Request) {
	for _, e := range l.exprs {
		e.AddBindValues(r)
	}
}

// QueryPlanHash adds every expression to the plan
func (l *List) QueryPlanHash(b *PlanBuilder) {
	for _, e := range l.exprs {
		e.QueryPlanHash(b)
	}
}

// QueryBindHash combines the bind hashes of the expressions
func (l *List) QueryBindHash() uint64 {
	var h uint64
	for _, e := range l.exprs {
		h = h*31 + e.QueryBindHash()
	}
	return h
}

// IsSameByPlan reports whether both lists render the same SQL
func (l *List) IsSameByPlan(other *List) bool {
	if len(l.exprs) != len(other.exprs) {
		return false
	}
	for i, e := range l.exprs {
		if !e.IsSameByPlan(other.exprs[i]) {
			return false
		}
	}
	return true
}

// IsSameByBind reports whether both lists bind the same values
func (l *List) IsSameByBind(other *List) bool {
	if len(l.exprs) != len(other.exprs) {
		return false
	}
	for i, e := range l.exprs {
		if !e.IsSameByBind(other.exprs[i]) {
			return false
		}
	}
	return true
}
