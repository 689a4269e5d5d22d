package domain

import "time"

// Category — категория новости.
type Category string

const (
	CategoryDomestic      Category = "DOMESTIC"
	CategoryInternational Category = "INTERNATIONAL"
)

// NewsItem — сырая новость, получаемая от ContentFetcher.
type NewsItem struct {
	// Title — заголовок.
	Title string `json:"title"`

	// Content — полный текст.
	Content string `json:"content"`

	// Link — ссылка на оригинал.
	Link string `json:"link"`

	// Source — источник (имя ленты).
	Source string `json:"source"`

	// Category — DOMESTIC или INTERNATIONAL.
	Category Category `json:"category"`

	// PublishedAt — время публикации по данным ленты.
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// ProcessedItem — новость после AI-стадий pipeline.
type ProcessedItem struct {
	NewsItem

	// Summary — сгенерированное резюме (или fallback — усечённый оригинал).
	Summary string `json:"summary"`

	// TranslatedContent — перевод (только для INTERNATIONAL).
	TranslatedContent string `json:"translated_content,omitempty"`

	// Importance — оценка важности 1..5.
	Importance int `json:"importance"`

	// Script — короткий пер-новостной скрипт.
	Script string `json:"script,omitempty"`
}
