package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrjgit/news/internal/domain"
)

// Лимиты чтения лент.
const (
	defaultFeedTimeout = 15 * time.Second
	defaultMaxPerFeed  = 20
	maxFeedBody        = 4 << 20
)

// Feed — одна RSS-лента с метаданными источника.
type Feed struct {
	// URL — адрес ленты.
	URL string

	// Source — человекочитаемое имя источника.
	Source string

	// Category — категория всех новостей ленты.
	Category domain.Category
}

// RSSFetcher читает набор RSS-лент и отдаёт их содержимое
// как единый batch. Реализует pipeline.ContentFetcher.
type RSSFetcher struct {
	feeds      []Feed
	client     *http.Client
	maxPerFeed int
	logger     *slog.Logger
}

// RSSConfig — конфигурация RSSFetcher.
type RSSConfig struct {
	// Feeds — список лент. Обязателен.
	Feeds []Feed

	// Client — HTTP-клиент; nil — клиент с дефолтным таймаутом.
	Client *http.Client

	// MaxPerFeed — максимум новостей с одной ленты (default: 20).
	MaxPerFeed int

	// Logger — логгер; nil — slog.Default().
	Logger *slog.Logger
}

// NewRSSFetcher создаёт RSSFetcher.
func NewRSSFetcher(cfg RSSConfig) (*RSSFetcher, error) {
	if len(cfg.Feeds) == 0 {
		return nil, fmt.Errorf("rss fetcher requires at least one feed")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFeedTimeout}
	}
	maxPerFeed := cfg.MaxPerFeed
	if maxPerFeed <= 0 {
		maxPerFeed = defaultMaxPerFeed
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RSSFetcher{
		feeds:      cfg.Feeds,
		client:     client,
		maxPerFeed: maxPerFeed,
		logger:     logger,
	}, nil
}

// FetchBatch читает все ленты параллельно. Отказ отдельной ленты
// логируется и не валит batch; ошибка возвращается только если
// не удалось прочитать ни одной ленты.
func (f *RSSFetcher) FetchBatch(ctx context.Context) ([]domain.NewsItem, error) {
	var mu sync.Mutex
	var items []domain.NewsItem
	var failed int

	var wg sync.WaitGroup
	for _, feed := range f.feeds {
		wg.Add(1)
		go func(feed Feed) {
			defer wg.Done()

			got, err := f.fetchFeed(ctx, feed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.logger.Warn("feed fetch failed", "feed", feed.URL, "error", err)
				failed++
				return
			}
			items = append(items, got...)
		}(feed)
	}
	wg.Wait()

	if failed == len(f.feeds) {
		return nil, fmt.Errorf("all %d feeds failed", failed)
	}
	return items, nil
}

func (f *RSSFetcher) fetchFeed(ctx context.Context, feed Feed) ([]domain.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "news-sync/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s: HTTP %d", feed.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.URL, err)
	}

	items := make([]domain.NewsItem, 0, len(doc.Channel.Items))
	for _, raw := range doc.Channel.Items {
		if len(items) >= f.maxPerFeed {
			break
		}
		title := strings.TrimSpace(raw.Title)
		if title == "" {
			continue
		}
		content := strings.TrimSpace(raw.Encoded)
		if content == "" {
			content = strings.TrimSpace(raw.Description)
		}
		items = append(items, domain.NewsItem{
			Title:       title,
			Content:     content,
			Link:        strings.TrimSpace(raw.Link),
			Source:      feed.Source,
			Category:    feed.Category,
			PublishedAt: parsePubDate(raw.PubDate),
		})
	}
	return items, nil
}

// rssDocument — минимальная схема RSS 2.0.
type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Encoded     string `xml:"encoded"`
	PubDate     string `xml:"pubDate"`
}

// pubDateLayouts — форматы дат, встречающиеся в реальных лентах.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
