package siteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"kgicweb/logger"
	"kgicweb/model"
)

// ErrDeduplicated means the server dropped a repeated play report.
var ErrDeduplicated = errors.New("play report deduplicated")

// APIError is a non-2xx answer from the site.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API返回错误状态码 %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("API返回错误状态码 %d: %s", e.Status, e.Message)
}

// Client 站点 API 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	// session 作为 X-Client-Session 发送，服务端据此对播放上报去重
	session string
}

// NewClient 创建新的API客户端
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		session: uuid.New().String(),
	}
}

// SetTimeout 设置请求超时时间
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Session returns the id sent with play reports.
func (c *Client) Session() string {
	return c.session
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Client-Session", c.session)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Message, apiErr.Code = payload.Error, payload.Code
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// List fetches the public rows of a collection. name is the public path
// segment, e.g. "podcasts" or "groups".
func List[T any](ctx context.Context, c *Client, name string, query url.Values) ([]T, error) {
	path := "/api/" + name
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var rows []T
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		logger.Warn("[siteapi] 获取列表失败", logger.String("collection", name), logger.ErrorField(err))
		return nil, err
	}
	return rows, nil
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// ListPodcasts returns published podcasts, newest first.
func (c *Client) ListPodcasts(ctx context.Context, limit int) ([]*model.Podcast, error) {
	return List[*model.Podcast](ctx, c, "podcasts", limitQuery(limit))
}

func (c *Client) ListPrayers(ctx context.Context, limit int) ([]*model.Prayer, error) {
	return List[*model.Prayer](ctx, c, "prayers", limitQuery(limit))
}

func (c *Client) ListAnnouncements(ctx context.Context) ([]*model.Announcement, error) {
	return List[*model.Announcement](ctx, c, "announcements", nil)
}

func (c *Client) ListMinistries(ctx context.Context) ([]*model.Ministry, error) {
	return List[*model.Ministry](ctx, c, "ministries", nil)
}

func (c *Client) ListGroups(ctx context.Context) ([]*model.Group, error) {
	return List[*model.Group](ctx, c, "groups", nil)
}

// ListBooks filters by category ("" or "all" for every category) and a
// case-insensitive search over title, author and description.
func (c *Client) ListBooks(ctx context.Context, category, search string) ([]*model.Book, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if search != "" {
		q.Set("q", search)
	}
	return List[*model.Book](ctx, c, "books", q)
}

// SignURL asks the site for a time-limited URL of a stored object.
func (c *Client) SignURL(ctx context.Context, rawURL string, fresh bool) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	body := map[string]interface{}{"url": rawURL, "fresh": fresh}
	if err := c.do(ctx, http.MethodPost, "/api/podcasts/sign-url", body, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("签名响应缺少 url")
	}
	return out.URL, nil
}

// IncrementPlay reports one play. The count is 0 when the server did not
// return one, e.g. for an unknown podcast.
func (c *Client) IncrementPlay(ctx context.Context, id string) (int64, error) {
	var out struct {
		OK           bool  `json:"ok"`
		PlayCount    int64 `json:"playCount"`
		Deduplicated bool  `json:"deduplicated"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/podcasts/increment-play", map[string]string{"id": id}, &out); err != nil {
		return 0, err
	}
	if out.Deduplicated {
		return 0, ErrDeduplicated
	}
	return out.PlayCount, nil
}
