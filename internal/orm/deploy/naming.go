package deploy

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// NamingConvention maps bean and property names to table and column names
type NamingConvention interface {
	TableName(beanName string) TableName
	ColumnName(propertyName string) string
	ForeignKeyColumn(propertyName, targetIDColumn string) string
	SequenceName(table, pkColumn string) string
}

// UnderscoreNamingConvention maps camel case names to snake case,
// e.g. CustomerOrder to customer_order
type UnderscoreNamingConvention struct {
	Schema    string
	Pluralize bool
}

// TableName returns the table for a bean, pluralized when configured
func (n UnderscoreNamingConvention) TableName(beanName string) TableName {
	name := ToUnderscore(beanName)
	if n.Pluralize {
		name = inflection.Plural(name)
	}
	return TableName{Schema: n.Schema, Name: name}
}

// ColumnName returns the column for a property
func (n UnderscoreNamingConvention) ColumnName(propertyName string) string {
	return ToUnderscore(propertyName)
}

// ForeignKeyColumn returns the column for an assoc one property,
// e.g. customer + id gives customer_id
func (n UnderscoreNamingConvention) ForeignKeyColumn(propertyName, targetIDColumn string) string {
	return ToUnderscore(propertyName) + "_" + targetIDColumn
}

// SequenceName returns the default sequence name for a table
func (n UnderscoreNamingConvention) SequenceName(table, _ string) string {
	return table + "_seq"
}

// ToUnderscore converts camel case to snake case.
// Acronyms stay together: "HTTPServer" gives "http_server", "customerID" gives "customer_id".
func ToUnderscore(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// CamelFromUnderscore converts snake case to lower camel case,
// e.g. "customer_id" gives "customerId"
func CamelFromUnderscore(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	var b strings.Builder
	b.Grow(len(s))
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
