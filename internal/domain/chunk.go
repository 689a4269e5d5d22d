package domain

// AudioChunk — единица вывода ChunkedSynthesizer.
//
// Итоговый выпуск — это chunks в порядке возрастания Index.
type AudioChunk struct {
	// Index — порядковый номер chunk в исходном тексте (≥0).
	Index int `json:"index"`

	// URL — расположение артефакта в ArtifactStore.
	URL string `json:"url"`

	// ByteSize — размер артефакта в байтах.
	ByteSize int64 `json:"byte_size"`

	// DurationMs — время синтеза в миллисекундах (опционально).
	DurationMs int64 `json:"duration_ms,omitempty"`
}
