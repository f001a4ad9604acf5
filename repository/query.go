package repository

import (
	"errors"
	"fmt"
	"strings"

	"kgicweb/model"

	"github.com/samber/lo"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidColumn = errors.New("invalid column")
)

// Filter is an equality condition on one column.
type Filter struct {
	Column string
	Value  interface{}
}

// Order sorts by one column.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a list request. Filters are AND-ed, orders applied left to right.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

// Where appends an equality filter.
func (q Query) Where(column string, value interface{}) Query {
	q.Filters = append(q.Filters, Filter{Column: column, Value: value})
	return q
}

// OrderBy appends a sort column.
func (q Query) OrderBy(column string, desc bool) Query {
	q.Order = append(q.Order, Order{Column: column, Desc: desc})
	return q
}

// build renders the WHERE / ORDER BY / LIMIT tail. Column names are checked
// against the record's own columns since they are interpolated into SQL.
func (q Query) build(allowed []string) (string, []interface{}, error) {
	var sb strings.Builder
	var args []interface{}

	for i, f := range q.Filters {
		if !lo.Contains(allowed, f.Column) {
			return "", nil, fmt.Errorf("%w: %s", ErrInvalidColumn, f.Column)
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(f.Column)
		sb.WriteString(" = ?")
		args = append(args, f.Value)
	}

	for i, o := range q.Order {
		if !lo.Contains(allowed, o.Column) {
			return "", nil, fmt.Errorf("%w: %s", ErrInvalidColumn, o.Column)
		}
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(o.Column)
		if o.Desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return sb.String(), args, nil
}

// Public listing order per collection, as the site pages show them.
func PublicQuery(c model.Collection) Query {
	switch c {
	case model.CollectionPrayers:
		return Query{}.Where("status", model.StatusPublished).
			OrderBy("scheduled_for", true).OrderBy("created_at", true)
	case model.CollectionPodcasts:
		return Query{}.Where("status", model.StatusPublished).
			OrderBy("published_at", true)
	case model.CollectionAnnouncements:
		return Query{}.Where("status", model.StatusPublished).
			OrderBy("pinned", true).OrderBy("starts_at", true).OrderBy("created_at", true)
	case model.CollectionMinistries, model.CollectionGroups:
		return Query{}.Where("status", model.StatusActive).OrderBy("name", false)
	case model.CollectionBooks:
		return Query{}.Where("status", model.StatusPublished).OrderBy("title", false)
	}
	return Query{}
}

// AdminQuery is the ordering of the admin dashboard tables.
func AdminQuery(c model.Collection) Query {
	switch c {
	case model.CollectionPrayers:
		return Query{}.OrderBy("scheduled_for", true).OrderBy("created_at", true)
	case model.CollectionPodcasts:
		return Query{}.OrderBy("published_at", true).OrderBy("created_at", true)
	case model.CollectionAnnouncements:
		return Query{}.OrderBy("pinned", true).OrderBy("starts_at", true).OrderBy("created_at", true)
	case model.CollectionMinistries, model.CollectionGroups:
		return Query{}.OrderBy("status", false).OrderBy("created_at", true)
	}
	return Query{}.OrderBy("created_at", true)
}
