package domain

import (
	"time"
)

// Kind — вид фоновой задачи.
//
// Обе разновидности используют одну и ту же форму записи Job
// и один механизм очереди, различаются только payload/result.
type Kind string

const (
	// KindSync — ежедневная синхронизация новостей (staged pipeline).
	KindSync Kind = "sync"

	// KindAudio — генерация аудио-выпуска из готового скрипта.
	KindAudio Kind = "audio"
)

// Job — персистентная единица работы.
//
// Job создаётся через jobstore.Enqueue, мутируется исключительно
// worker'ом, который её обрабатывает, и удаляется reaper'ом после
// истечения retention.
type Job struct {
	// ID — неизменяемый уникальный идентификатор, видимый вызывающему.
	ID string `json:"id"`

	// Kind — вид задачи (sync или audio).
	Kind Kind `json:"kind"`

	// Status — текущий статус. Движется только вперёд:
	// PENDING → ACTIVE → {SUCCEEDED, FAILED}.
	Status Status `json:"status"`

	// Progress — последний зафиксированный прогресс.
	// Progress.Percent монотонно не убывает в течение жизни job.
	Progress Progress `json:"progress"`

	// Payload — входные параметры задачи.
	Payload Payload `json:"payload"`

	// Result — итог выполнения. Заполняется только в терминальных статусах.
	Result *Result `json:"result,omitempty"`

	// CreatedAt — время создания (enqueue).
	CreatedAt time.Time `json:"created_at"`

	// FinishedAt — время завершения. Заполнено тогда и только тогда,
	// когда статус терминальный.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Progress — прогресс выполнения job.
type Progress struct {
	// Stage — имя текущей стадии pipeline.
	Stage string `json:"stage"`

	// Percent — прогресс 0..100.
	Percent int `json:"percent"`

	// Message — человекочитаемое описание.
	Message string `json:"message,omitempty"`

	// Details — детали пер-item обработки внутри стадии.
	Details *ProgressDetails `json:"details,omitempty"`
}

// ProgressDetails — детали batch-обработки внутри стадии.
type ProgressDetails struct {
	// Current — количество обработанных items.
	Current int `json:"current"`

	// Total — всего items в batch.
	Total int `json:"total"`

	// FailedItems — идентификаторы items, деградировавших до fallback.
	FailedItems []string `json:"failed_items,omitempty"`
}

// Payload — входные параметры задачи. Общая плоская форма для обоих kinds;
// незаполненные поля опускаются при сериализации.
type Payload struct {
	// --- sync ---

	// ForceRefresh — игнорировать маркер идемпотентности за сегодня.
	ForceRefresh bool `json:"force_refresh,omitempty"`

	// ItemCount — желаемое количество новостей в выпуске.
	ItemCount int `json:"item_count,omitempty"`

	// --- audio ---

	// Date — дата выпуска в формате YYYY-MM-DD.
	Date string `json:"date,omitempty"`

	// Script — текст выпуска для синтеза.
	Script string `json:"script,omitempty"`

	// BestEffort — допускать пропуск упавших chunks при синтезе.
	BestEffort bool `json:"best_effort,omitempty"`
}

// Result — итог выполнения задачи.
type Result struct {
	// Success — завершилась ли задача успешно.
	Success bool `json:"success"`

	// ProducedCount — количество сохранённых новостей (sync)
	// или синтезированных chunks (audio).
	ProducedCount int `json:"produced_count,omitempty"`

	// Skipped — задача пропущена по маркеру идемпотентности.
	Skipped bool `json:"skipped,omitempty"`

	// ArtifactURLs — ссылки на chunk-артефакты в порядке воспроизведения (audio).
	ArtifactURLs []string `json:"artifact_urls,omitempty"`

	// TotalBytes — суммарный размер артефактов (audio).
	TotalBytes int64 `json:"total_bytes,omitempty"`

	// Error — текст ошибки при Success=false.
	Error string `json:"error,omitempty"`
}

// IsFinished возвращает true, если job завершена.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// Age возвращает возраст job относительно now.
func (j *Job) Age(now time.Time) time.Duration {
	return now.Sub(j.CreatedAt)
}
