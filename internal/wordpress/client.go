// Package wordpress клиент REST API WordPress для смены паролей защищённых постов.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/donation-bot/internal/config"
	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 5 * time.Second
	postsPerPage       = 100
)

var (
	// ErrCategoryNotFound категория с таким именем не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrUnavailable сервер отвечал 503 на все попытки.
	ErrUnavailable = errors.New("wordpress unavailable")
)

// StatusError ответ с неожиданным HTTP-статусом.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected status: " + e.Status
}

type category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type post struct {
	ID int `json:"id"`
}

// Client клиент WordPress с авторизацией по паролю приложения.
type Client struct {
	baseURL     string
	username    string
	appPassword string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
	postDelay   time.Duration
	log         *slog.Logger
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetry задаёт число попыток при 503 и паузу между ними.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = attempts
		c.retryDelay = delay
	}
}

// WithPostDelay задаёт паузу между обновлениями постов.
func WithPostDelay(d time.Duration) Option {
	return func(c *Client) {
		c.postDelay = d
	}
}

// NewClient создаёт новый клиент WordPress.
func NewClient(cfg config.WordPress, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		username:    cfg.Username,
		appPassword: cfg.AppPassword,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		postDelay:   defaultRetryDelay,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + "/wp-json/wp/v2" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.appPassword))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// CategoryID ищет категорию по имени. Предпочитается точное совпадение имени или slug,
// иначе берётся первый результат поиска.
func (c *Client) CategoryID(ctx context.Context, name string) (int, error) {
	const op = "wordpress.CategoryID"

	req, err := c.newRequest(ctx, http.MethodGet, "/categories", url.Values{"search": {name}}, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	var categories []category
	if _, err := c.do(req, &categories); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(categories) == 0 {
		return 0, fmt.Errorf("%s: %s: %w", op, name, ErrCategoryNotFound)
	}
	for _, cat := range categories {
		if strings.EqualFold(cat.Name, name) || strings.EqualFold(cat.Slug, name) {
			return cat.ID, nil
		}
	}
	return categories[0].ID, nil
}

// PostIDsByCategory возвращает идентификаторы всех постов категории, проходя по страницам.
func (c *Client) PostIDsByCategory(ctx context.Context, categoryID int) ([]int, error) {
	const op = "wordpress.PostIDsByCategory"

	var ids []int
	for page, totalPages := 1, 1; page <= totalPages; page++ {
		query := url.Values{
			"categories": {strconv.Itoa(categoryID)},
			"per_page":   {strconv.Itoa(postsPerPage)},
			"page":       {strconv.Itoa(page)},
			"status":     {"any"},
			"_fields":    {"id"},
		}
		req, err := c.newRequest(ctx, http.MethodGet, "/posts", query, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var posts []post
		resp, err := c.do(req, &posts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, p := range posts {
			ids = append(ids, p.ID)
		}
		if n, err := strconv.Atoi(resp.Header.Get("X-WP-TotalPages")); err == nil {
			totalPages = n
		}
	}
	return ids, nil
}

// UpdatePostPassword выставляет пароль посту. Ответ 503 повторяется до maxAttempts раз.
func (c *Client) UpdatePostPassword(ctx context.Context, postID int, password string) error {
	const op = "wordpress.UpdatePostPassword"
	log := c.log.With(slog.String("op", op), slog.Int("post_id", postID))

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := c.newRequest(ctx, http.MethodPost, "/posts/"+strconv.Itoa(postID), nil,
			map[string]string{"password": password})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		_, err = c.do(req, nil)
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
			return fmt.Errorf("%s: %w", op, err)
		}

		log.Warn("wordpress unavailable, retrying", slog.Int("attempt", attempt))
		if attempt == c.maxAttempts {
			break
		}
		if err := sleep(ctx, c.retryDelay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: post %d: %w", op, postID, ErrUnavailable)
}

// SetCategoryPassword выставляет пароль всем постам категории с именем category.
// Ошибка одного поста не прерывает обработку остальных; возвращает число обновлённых постов.
func (c *Client) SetCategoryPassword(ctx context.Context, category, password string) (int, error) {
	const op = "wordpress.SetCategoryPassword"
	log := c.log.With(slog.String("op", op), slog.String("category", category))

	categoryID, err := c.CategoryID(ctx, category)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	postIDs, err := c.PostIDsByCategory(ctx, categoryID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var (
		updated int
		errs    []error
	)
	for i, id := range postIDs {
		if err := c.UpdatePostPassword(ctx, id, password); err != nil {
			log.Error("failed to update post", slog.Int("post_id", id), sl.Err(err))
			errs = append(errs, err)
		} else {
			updated++
		}
		if i < len(postIDs)-1 {
			if err := sleep(ctx, c.postDelay); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}

	log.Info("category posts processed", slog.Int("updated", updated), slog.Int("total", len(postIDs)))
	if len(errs) > 0 {
		return updated, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return updated, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
