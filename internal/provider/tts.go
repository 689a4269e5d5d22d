package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Дефолты TTS-клиента.
const (
	defaultTTSTimeout = 2 * time.Minute
	defaultTTSVoice   = "alloy"
	defaultTTSFormat  = "mp3"
	maxTTSErrBody     = 2048
)

// TTSClient — клиент speech API (OpenAI-совместимый).
// Реализует synth.Synthesizer.
type TTSClient struct {
	baseURL string
	apiKey  string
	model   string
	voice   string
	client  *http.Client
	logger  *slog.Logger
}

// TTSConfig — конфигурация TTSClient.
type TTSConfig struct {
	// BaseURL — адрес API без завершающего слэша. Обязателен.
	BaseURL string

	// APIKey — bearer-токен. Обязателен.
	APIKey string

	// Model — имя TTS-модели (default: tts-1).
	Model string

	// Voice — голос (default: alloy).
	Voice string

	// Client — HTTP-клиент; nil — клиент с дефолтным таймаутом.
	Client *http.Client

	// Logger — логгер; nil — slog.Default().
	Logger *slog.Logger
}

// NewTTSClient создаёт TTSClient.
func NewTTSClient(cfg TTSConfig) (*TTSClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tts client requires a base URL")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tts client requires an api key")
	}

	model := cfg.Model
	if model == "" {
		model = "tts-1"
	}
	voice := cfg.Voice
	if voice == "" {
		voice = defaultTTSVoice
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTTSTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TTSClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		voice:   voice,
		client:  client,
		logger:  logger,
	}, nil
}

type speechRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`
	Voice  string `json:"voice"`
	Format string `json:"response_format"`
}

// Synthesize превращает текст в аудио-байты (mp3).
func (c *TTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(speechRequest{
		Model:  c.model,
		Input:  text,
		Voice:  c.voice,
		Format: defaultTTSFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxTTSErrBody))
		return nil, fmt.Errorf("speech API: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech API returned empty audio")
	}
	return audio, nil
}
