package bean

import "errors"

var (
	// ErrNoBeanLoader is returned when a lazy load is requested on a bean without a loader
	ErrNoBeanLoader = errors.New("bean has no loader attached")

	// ErrLazyLoadFailure is returned when reading an unloaded property of a bean
	// whose lazy load found no row, usually because it was deleted
	ErrLazyLoadFailure = errors.New("lazy loading failed, bean has been deleted")
)

// Bean is a generic entity bean whose properties live in its intercept.
// Application types embed it to become entity beans.
type Bean struct {
	ebi *Intercept
}

// New creates a new bean of the given type
func New(beanType string) *Bean {
	b := &Bean{}
	b.ebi = NewIntercept(b, beanType)
	return b
}

// EbeanIntercept returns the intercept
func (b *Bean) EbeanIntercept() *Intercept {
	return b.ebi
}

// Set assigns a property value
func (b *Bean) Set(property string, value interface{}) *Bean {
	b.ebi.Set(property, value)
	return b
}

// Value returns a property value without lazy loading
func (b *Bean) Value(property string) interface{} {
	return b.ebi.Value(property)
}
