package model

import (
	"fmt"
	"time"
)

// Collection 内容表名
type Collection string

const (
	CollectionPrayers       Collection = "prayers"
	CollectionPodcasts      Collection = "podcasts"
	CollectionBooks         Collection = "books"
	CollectionAnnouncements Collection = "announcements"
	CollectionMinistries    Collection = "ministries"
	CollectionGroups        Collection = "small_groups"
)

// Collections lists every content table in schema order.
var Collections = []Collection{
	CollectionPrayers,
	CollectionPodcasts,
	CollectionBooks,
	CollectionAnnouncements,
	CollectionMinistries,
	CollectionGroups,
}

// Publication status shared by prayers, podcasts, books and announcements.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Visibility status of ministries and small groups.
const (
	StatusActive = "active"
	StatusHidden = "hidden"
)

// Base 所有内容记录共有的字段
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Meta returns the shared columns of a record.
func (b *Base) Meta() *Base { return b }

// Field binds a column name to the struct field holding its value.
type Field struct {
	Column string
	Ptr    interface{}
	// ReadOnly columns are scanned but never written by insert/update.
	ReadOnly bool
}

// Record is implemented by every content row type.
type Record interface {
	Collection() Collection
	Meta() *Base
	Fields() []Field
}

// ParseCollection accepts the table name or the public alias "groups".
func ParseCollection(name string) (Collection, error) {
	if name == "groups" {
		return CollectionGroups, nil
	}
	for _, c := range Collections {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", name)
}

// NewRecord returns an empty row of the collection's type with defaults applied.
func NewRecord(c Collection) (Record, error) {
	switch c {
	case CollectionPrayers:
		return &Prayer{Status: StatusDraft}, nil
	case CollectionPodcasts:
		return &Podcast{Status: StatusDraft}, nil
	case CollectionBooks:
		return &Book{Status: StatusPublished}, nil
	case CollectionAnnouncements:
		return &Announcement{Status: StatusDraft}, nil
	case CollectionMinistries:
		return &Ministry{Status: StatusActive}, nil
	case CollectionGroups:
		return &Group{Status: StatusActive}, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
}

// Columns returns every column of the collection, shared columns first.
func Columns(rec Record) []string {
	cols := []string{"id", "created_at", "updated_at"}
	for _, f := range rec.Fields() {
		cols = append(cols, f.Column)
	}
	return cols
}
