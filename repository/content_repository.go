package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"kgicweb/model"

	"github.com/google/uuid"
)

// ContentRepository reads and writes the six content tables.
type ContentRepository struct {
	DB  *sql.DB
	now func() time.Time
}

func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

// List returns the rows of a collection matching q.
func (r *ContentRepository) List(ctx context.Context, c model.Collection, q Query) ([]model.Record, error) {
	proto, err := model.NewRecord(c)
	if err != nil {
		return nil, err
	}
	cols := model.Columns(proto)
	tail, args, err := q.build(cols)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(cols, ", "), c, tail)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c, err)
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		rec, _ := model.NewRecord(c)
		if err := rows.Scan(scanTargets(rec)...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", c, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns one row by id.
func (r *ContentRepository) Get(ctx context.Context, c model.Collection, id string) (model.Record, error) {
	rec, err := model.NewRecord(c)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(model.Columns(rec), ", "), c)
	err = r.DB.QueryRowContext(ctx, query, id).Scan(scanTargets(rec)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", c, id, err)
	}
	return rec, nil
}

// Insert stores a new row, assigning id and timestamps when missing.
func (r *ContentRepository) Insert(ctx context.Context, rec model.Record) error {
	meta := rec.Meta()
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	now := r.now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	cols := []string{"id", "created_at", "updated_at"}
	args := []interface{}{meta.ID, meta.CreatedAt, meta.UpdatedAt}
	for _, f := range rec.Fields() {
		if f.ReadOnly {
			continue
		}
		cols = append(cols, f.Column)
		args = append(args, columnValue(f.Ptr))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", rec.Collection(), strings.Join(cols, ", "), placeholders)
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", rec.Collection(), err)
	}
	return nil
}

// Update writes every writable column of rec back to its row.
func (r *ContentRepository) Update(ctx context.Context, rec model.Record) error {
	meta := rec.Meta()
	if meta.ID == "" {
		return ErrNotFound
	}
	meta.UpdatedAt = r.now()

	sets := []string{"updated_at = ?"}
	args := []interface{}{meta.UpdatedAt}
	for _, f := range rec.Fields() {
		if f.ReadOnly {
			continue
		}
		sets = append(sets, f.Column+" = ?")
		args = append(args, columnValue(f.Ptr))
	}
	args = append(args, meta.ID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", rec.Collection(), strings.Join(sets, ", "))
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", rec.Collection(), meta.ID, err)
	}
	return requireAffected(res)
}

// Delete removes a row by id.
func (r *ContentRepository) Delete(ctx context.Context, c model.Collection, id string) error {
	if _, err := model.NewRecord(c); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", c), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", c, id, err)
	}
	return requireAffected(res)
}

// ListAs is List with the rows asserted to their concrete type.
func ListAs[T model.Record](ctx context.Context, r *ContentRepository, c model.Collection, q Query) ([]T, error) {
	records, err := r.List(ctx, c, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		typed, ok := rec.(T)
		if !ok {
			return nil, fmt.Errorf("unexpected row type %T in %s", rec, c)
		}
		out = append(out, typed)
	}
	return out, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTargets(rec model.Record) []interface{} {
	meta := rec.Meta()
	targets := []interface{}{&meta.ID, &meta.CreatedAt, &meta.UpdatedAt}
	for _, f := range rec.Fields() {
		targets = append(targets, f.Ptr)
	}
	return targets
}

// columnValue dereferences a field pointer; nil optional fields become NULL.
func columnValue(ptr interface{}) interface{} {
	switch v := ptr.(type) {
	case *string:
		return *v
	case *bool:
		return *v
	case *int64:
		return *v
	case *float64:
		return *v
	case **string:
		if *v == nil {
			return nil
		}
		return **v
	case **int:
		if *v == nil {
			return nil
		}
		return int64(**v)
	case **time.Time:
		if *v == nil {
			return nil
		}
		return (*v).UTC()
	}

	rv := reflect.ValueOf(ptr).Elem()
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return rv.Interface()
}
