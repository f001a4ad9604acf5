package model

import "time"

// Prayer 祷告文
type Prayer struct {
	Base
	Title        string     `json:"title" validate:"required,max=255"`
	Content      string     `json:"content" validate:"required"`
	Author       *string    `json:"author,omitempty" validate:"omitempty,max=255"`
	Excerpt      *string    `json:"excerpt,omitempty" validate:"omitempty,max=500"`
	IsFeatured   bool       `json:"is_featured"`
	Status       string     `json:"status" validate:"oneof=draft published archived"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

func (p *Prayer) Collection() Collection { return CollectionPrayers }

func (p *Prayer) Fields() []Field {
	return []Field{
		{Column: "title", Ptr: &p.Title},
		{Column: "content", Ptr: &p.Content},
		{Column: "author", Ptr: &p.Author},
		{Column: "excerpt", Ptr: &p.Excerpt},
		{Column: "is_featured", Ptr: &p.IsFeatured},
		{Column: "status", Ptr: &p.Status},
		{Column: "scheduled_for", Ptr: &p.ScheduledFor},
	}
}

// Podcast 播客节目。PlayCount 只能通过原子自增修改
type Podcast struct {
	Base
	Title           string     `json:"title" validate:"required,max=255"`
	Description     *string    `json:"description,omitempty"`
	Artist          *string    `json:"artist,omitempty" validate:"omitempty,max=255"`
	AudioURL        string     `json:"audio_url" validate:"required,url"`
	DurationSeconds *int       `json:"duration_seconds,omitempty" validate:"omitempty,min=0"`
	Status          string     `json:"status" validate:"oneof=draft published archived"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	ImageURL        *string    `json:"image_url,omitempty" validate:"omitempty,url"`
	PlayCount       int64      `json:"play_count"`
}

func (p *Podcast) Collection() Collection { return CollectionPodcasts }

func (p *Podcast) Fields() []Field {
	return []Field{
		{Column: "title", Ptr: &p.Title},
		{Column: "description", Ptr: &p.Description},
		{Column: "artist", Ptr: &p.Artist},
		{Column: "audio_url", Ptr: &p.AudioURL},
		{Column: "duration_seconds", Ptr: &p.DurationSeconds},
		{Column: "status", Ptr: &p.Status},
		{Column: "published_at", Ptr: &p.PublishedAt},
		{Column: "image_url", Ptr: &p.ImageURL},
		{Column: "play_count", Ptr: &p.PlayCount, ReadOnly: true},
	}
}

// Book 书店条目
type Book struct {
	Base
	Title       string  `json:"title" validate:"required,max=255"`
	Author      string  `json:"author" validate:"required,max=255"`
	Price       float64 `json:"price" validate:"min=0"`
	Description *string `json:"description,omitempty"`
	CoverURL    *string `json:"cover_url,omitempty" validate:"omitempty,url"`
	Rating      float64 `json:"rating" validate:"min=0,max=5"`
	ReadingTime *string `json:"reading_time,omitempty" validate:"omitempty,max=64"`
	Category    string  `json:"category" validate:"required,max=64"`
	Status      string  `json:"status" validate:"oneof=draft published archived"`
}

func (b *Book) Collection() Collection { return CollectionBooks }

func (b *Book) Fields() []Field {
	return []Field{
		{Column: "title", Ptr: &b.Title},
		{Column: "author", Ptr: &b.Author},
		{Column: "price", Ptr: &b.Price},
		{Column: "description", Ptr: &b.Description},
		{Column: "cover_url", Ptr: &b.CoverURL},
		{Column: "rating", Ptr: &b.Rating},
		{Column: "reading_time", Ptr: &b.ReadingTime},
		{Column: "category", Ptr: &b.Category},
		{Column: "status", Ptr: &b.Status},
	}
}

// Announcement 公告
type Announcement struct {
	Base
	Title    string     `json:"title" validate:"required,max=255"`
	Body     *string    `json:"body,omitempty"`
	LinkURL  *string    `json:"link_url,omitempty" validate:"omitempty,url"`
	Pinned   bool       `json:"pinned"`
	Status   string     `json:"status" validate:"oneof=draft published archived"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

func (a *Announcement) Collection() Collection { return CollectionAnnouncements }

func (a *Announcement) Fields() []Field {
	return []Field{
		{Column: "title", Ptr: &a.Title},
		{Column: "body", Ptr: &a.Body},
		{Column: "link_url", Ptr: &a.LinkURL},
		{Column: "pinned", Ptr: &a.Pinned},
		{Column: "status", Ptr: &a.Status},
		{Column: "starts_at", Ptr: &a.StartsAt},
		{Column: "ends_at", Ptr: &a.EndsAt},
	}
}

// Ministry 事工
type Ministry struct {
	Base
	Name        string  `json:"name" validate:"required,max=255"`
	ShortDesc   *string `json:"short_desc,omitempty" validate:"omitempty,max=500"`
	ContactLink *string `json:"contact_link,omitempty" validate:"omitempty,max=500"`
	Status      string  `json:"status" validate:"oneof=active hidden"`
}

func (m *Ministry) Collection() Collection { return CollectionMinistries }

func (m *Ministry) Fields() []Field {
	return []Field{
		{Column: "name", Ptr: &m.Name},
		{Column: "short_desc", Ptr: &m.ShortDesc},
		{Column: "contact_link", Ptr: &m.ContactLink},
		{Column: "status", Ptr: &m.Status},
	}
}

// Group 小组
type Group struct {
	Base
	Name        string  `json:"name" validate:"required,max=255"`
	Schedule    *string `json:"schedule,omitempty" validate:"omitempty,max=255"`
	ContactLink *string `json:"contact_link,omitempty" validate:"omitempty,max=500"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=255"`
	Status      string  `json:"status" validate:"oneof=active hidden"`
}

func (g *Group) Collection() Collection { return CollectionGroups }

func (g *Group) Fields() []Field {
	return []Field{
		{Column: "name", Ptr: &g.Name},
		{Column: "schedule", Ptr: &g.Schedule},
		{Column: "contact_link", Ptr: &g.ContactLink},
		{Column: "location", Ptr: &g.Location},
		{Column: "status", Ptr: &g.Status},
	}
}
