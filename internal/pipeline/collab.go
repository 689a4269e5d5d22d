package pipeline

import (
	"context"
	"time"

	"github.com/jrjgit/news/internal/domain"
)

// ContentFetcher отдаёт сырые новости. Отказ фатален для всего batch.
type ContentFetcher interface {
	FetchBatch(ctx context.Context) ([]domain.NewsItem, error)
}

// Summarizer генерирует краткое резюме новости.
type Summarizer interface {
	Summarize(ctx context.Context, item domain.NewsItem) (string, error)
}

// Translator переводит текст на целевой язык.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Scorer оценивает важность новости по шкале 1..5.
type Scorer interface {
	EvaluateImportance(ctx context.Context, title, body string) (int, error)
}

// ScriptComposer собирает тексты для озвучки.
type ScriptComposer interface {
	DailyScript(date time.Time, items []domain.ProcessedItem) string
	ItemScript(item domain.ProcessedItem) string
}

// AudioEnqueuer ставит фоновую задачу генерации аудио-выпуска.
type AudioEnqueuer interface {
	EnqueueAudio(ctx context.Context, date, script string) (jobID string, err error)
}

// Recorder — персистентность результатов синхронизации и маркер
// идемпотентности за дату.
type Recorder interface {
	CompletedMarker(ctx context.Context, date string) (bool, error)
	SaveItems(ctx context.Context, date string, items []domain.ProcessedItem) error
	MarkCompleted(ctx context.Context, date, jobID string, itemCount int) error
}

// ReportFunc публикует прогресс стадии. Может быть nil.
type ReportFunc func(ctx context.Context, p domain.Progress) error
