package playback

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"kgicweb/db"
	"kgicweb/model"
	"kgicweb/repository"
)

type repoCounter struct{ repo *repository.ContentRepository }

func (c repoCounter) IncrementPlay(ctx context.Context, id string) (int64, error) {
	return c.repo.IncrementPlayCount(ctx, id)
}

func TestListenToPublishedPodcast(t *testing.T) {
	ctx := context.Background()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.InitSchema(ctx, conn))
	repo := repository.NewContentRepository(conn)

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		published := base.AddDate(0, 0, i)
		require.NoError(t, repo.Insert(ctx, &model.Podcast{
			Title:       fmt.Sprintf("Episode %d", i+1),
			AudioURL:    fmt.Sprintf("https://cdn.example.com/ep%d.mp3", i+1),
			Status:      model.StatusPublished,
			PublishedAt: &published,
		}))
	}

	podcasts, err := repository.ListAs[*model.Podcast](ctx, repo, model.CollectionPodcasts, repository.PublicQuery(model.CollectionPodcasts))
	require.NoError(t, err)
	require.Len(t, podcasts, 3)
	assert.Equal(t, "Episode 3", podcasts[0].Title)

	reporter := NewReporter(repoCounter{repo: repo})
	c, out, clk := newTestCoordinator(t, nil, WithReporter(reporter))
	second := TrackFromPodcast(podcasts[1])

	require.NoError(t, c.Play(ctx, second))
	require.NoError(t, reporter.Wait(ctx))

	s := c.Snapshot()
	assert.Equal(t, podcasts[1].ID, s.Track.ID)
	assert.Equal(t, Playing, s.Transport)
	assert.Equal(t, "https://cdn.example.com/ep2.mp3", out.Source())

	rec, err := repo.Get(ctx, model.CollectionPodcasts, podcasts[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.(*model.Podcast).PlayCount)
	assert.Equal(t, int64(1), reporter.Count(podcasts[1].ID, 0))

	policy := DefaultVisibility()
	assert.True(t, policy.ShouldShow("/", c.Snapshot(), clk.Now()))

	require.NoError(t, c.Toggle(ctx))
	require.Equal(t, Paused, c.Snapshot().Transport)

	clk.Advance(59 * time.Second)
	assert.True(t, policy.ShouldShow("/", c.Snapshot(), clk.Now()))
	assert.True(t, policy.NeedsTick("/", c.Snapshot(), clk.Now()))

	clk.Advance(2 * time.Second)
	assert.False(t, policy.ShouldShow("/", c.Snapshot(), clk.Now()))
	assert.True(t, policy.ShouldShow("/podcasts", c.Snapshot(), clk.Now()))
}
