package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrCounterUnavailable means the play_count column or podcasts table is not provisioned.
var ErrCounterUnavailable = errors.New("play counter is not provisioned")

// IncrementPlayCount atomically adds one play to a podcast and returns the new count.
func (r *ContentRepository) IncrementPlayCount(ctx context.Context, id string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "UPDATE podcasts SET play_count = play_count + 1 WHERE id = ?", id)
	if err != nil {
		return 0, classifyCounterError(err)
	}
	if err := requireAffected(res); err != nil {
		return 0, err
	}

	// 读回的值可能已包含并发的其他自增，只用于展示
	var count int64
	err = r.DB.QueryRowContext(ctx, "SELECT play_count FROM podcasts WHERE id = ?", id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read play count: %w", err)
	}
	return count, nil
}

func classifyCounterError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1054, 1146: // unknown column, table doesn't exist
			return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no such column") || strings.Contains(msg, "no such table") {
		return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return fmt.Errorf("failed to increment play count: %w", err)
}
