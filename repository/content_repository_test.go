package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"kgicweb/db"
	"kgicweb/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestRepo(t *testing.T) *ContentRepository {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.InitSchema(context.Background(), conn))
	return NewContentRepository(conn)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestInsertAndGetPrayer(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	scheduled := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

	p := &model.Prayer{
		Title:        "Morning prayer",
		Content:      "Lord, guide us today.",
		Author:       strPtr("Pastor Kim"),
		Status:       model.StatusPublished,
		IsFeatured:   true,
		ScheduledFor: &scheduled,
	}
	require.NoError(t, repo.Insert(ctx, p))
	require.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	rec, err := repo.Get(ctx, model.CollectionPrayers, p.ID)
	require.NoError(t, err)
	got := rec.(*model.Prayer)

	assert.Equal(t, "Morning prayer", got.Title)
	require.NotNil(t, got.Author)
	assert.Equal(t, "Pastor Kim", *got.Author)
	assert.Nil(t, got.Excerpt)
	assert.True(t, got.IsFeatured)
	require.NotNil(t, got.ScheduledFor)
	assert.True(t, scheduled.Equal(*got.ScheduledFor))
}

func TestGetMissingRow(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), model.CollectionBooks, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublicPodcastsOrderedByPublishedAt(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, title := range []string{"First", "Second", "Third"} {
		require.NoError(t, repo.Insert(ctx, &model.Podcast{
			Title:       title,
			AudioURL:    fmt.Sprintf("https://cdn.example.com/%d.mp3", i),
			Status:      model.StatusPublished,
			PublishedAt: timePtr(base.Add(time.Duration(i) * 24 * time.Hour)),
		}))
	}
	require.NoError(t, repo.Insert(ctx, &model.Podcast{
		Title:       "Unreleased",
		AudioURL:    "https://cdn.example.com/draft.mp3",
		Status:      model.StatusDraft,
		PublishedAt: timePtr(base.Add(30 * 24 * time.Hour)),
	}))

	podcasts, err := ListAs[*model.Podcast](ctx, repo, model.CollectionPodcasts, PublicQuery(model.CollectionPodcasts))
	require.NoError(t, err)
	require.Len(t, podcasts, 3)
	assert.Equal(t, "Third", podcasts[0].Title)
	assert.Equal(t, "Second", podcasts[1].Title)
	assert.Equal(t, "First", podcasts[2].Title)
}

func TestListLimitAndInvalidColumn(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"Youth", "Choir", "Ushers"} {
		require.NoError(t, repo.Insert(ctx, &model.Ministry{Name: name, Status: model.StatusActive}))
	}

	q := PublicQuery(model.CollectionMinistries)
	q.Limit = 2
	rows, err := repo.List(ctx, model.CollectionMinistries, q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Choir", rows[0].(*model.Ministry).Name)

	_, err = repo.List(ctx, model.CollectionMinistries, Query{}.OrderBy("name; DROP TABLE ministries", false))
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestUpdateAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	g := &model.Group{Name: "Tuesday group", Status: model.StatusActive}
	require.NoError(t, repo.Insert(ctx, g))

	g.Location = strPtr("Room 204")
	g.Status = model.StatusHidden
	require.NoError(t, repo.Update(ctx, g))

	rec, err := repo.Get(ctx, model.CollectionGroups, g.ID)
	require.NoError(t, err)
	got := rec.(*model.Group)
	assert.Equal(t, model.StatusHidden, got.Status)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Room 204", *got.Location)

	require.NoError(t, repo.Delete(ctx, model.CollectionGroups, g.ID))
	assert.ErrorIs(t, repo.Delete(ctx, model.CollectionGroups, g.ID), ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, g), ErrNotFound)
}

func TestUpdateDoesNotWritePlayCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &model.Podcast{Title: "Sunday", AudioURL: "https://cdn.example.com/s.mp3", Status: model.StatusPublished}
	require.NoError(t, repo.Insert(ctx, p))
	_, err := repo.IncrementPlayCount(ctx, p.ID)
	require.NoError(t, err)

	p.PlayCount = 999
	p.Title = "Sunday service"
	require.NoError(t, repo.Update(ctx, p))

	rec, err := repo.Get(ctx, model.CollectionPodcasts, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.(*model.Podcast).PlayCount)
	assert.Equal(t, "Sunday service", rec.(*model.Podcast).Title)
}

func TestIncrementPlayCountConcurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &model.Podcast{Title: "Vespers", AudioURL: "https://cdn.example.com/v.mp3", Status: model.StatusPublished}
	require.NoError(t, repo.Insert(ctx, p))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncrementPlayCount(ctx, p.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := repo.IncrementPlayCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(21), count)
}

func TestIncrementPlayCountMissingPodcast(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.IncrementPlayCount(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementPlayCountUnprovisioned(t *testing.T) {
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer conn.Close()
	conn.SetMaxOpenConns(1)
	_, err = conn.Exec(`CREATE TABLE podcasts (id VARCHAR(36) PRIMARY KEY, title VARCHAR(255))`)
	require.NoError(t, err)

	repo := NewContentRepository(conn)
	_, err = repo.IncrementPlayCount(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrCounterUnavailable)
}
