package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jrjgit/news/internal/domain"
)

// Дефолты chat-клиента.
const (
	defaultChatTimeout = 60 * time.Second
	defaultChatModel   = "gpt-4o-mini"
	maxChatErrBody     = 2048
)

// ChatClient — клиент chat-completions API (OpenAI-совместимый).
// Реализует pipeline.Summarizer, pipeline.Translator и pipeline.Scorer.
type ChatClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// ChatConfig — конфигурация ChatClient.
type ChatConfig struct {
	// BaseURL — адрес API без завершающего слэша. Обязателен.
	BaseURL string

	// APIKey — bearer-токен. Обязателен.
	APIKey string

	// Model — имя модели (default: gpt-4o-mini).
	Model string

	// Client — HTTP-клиент; nil — клиент с дефолтным таймаутом.
	Client *http.Client

	// Logger — логгер; nil — slog.Default().
	Logger *slog.Logger
}

// NewChatClient создаёт ChatClient.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("chat client requires a base URL")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat client requires an api key")
	}

	model := cfg.Model
	if model == "" {
		model = defaultChatModel
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultChatTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ChatClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		client:  client,
		logger:  logger,
	}, nil
}

// Summarize генерирует резюме новости в 2-3 предложения.
func (c *ChatClient) Summarize(ctx context.Context, item domain.NewsItem) (string, error) {
	prompt := fmt.Sprintf("用2-3句话总结以下新闻，只输出总结本身。\n\n标题：%s\n\n正文：%s",
		item.Title, item.Content)
	return c.complete(ctx, prompt)
}

// Translate переводит текст на целевой язык.
func (c *ChatClient) Translate(ctx context.Context, text, targetLang string) (string, error) {
	prompt := fmt.Sprintf("Translate the following text to %s. Output only the translation.\n\n%s",
		targetLang, text)
	return c.complete(ctx, prompt)
}

// EvaluateImportance оценивает важность новости по шкале 1..5.
func (c *ChatClient) EvaluateImportance(ctx context.Context, title, body string) (int, error) {
	prompt := fmt.Sprintf(
		"Rate the news importance on a scale of 1 to 5, where 5 is a major event. Reply with a single digit.\n\nTitle: %s\n\nBody: %s",
		title, body)

	answer, err := c.complete(ctx, prompt)
	if err != nil {
		return 0, err
	}

	score, err := parseScore(answer)
	if err != nil {
		return 0, fmt.Errorf("importance for %q: %w", title, err)
	}
	return score, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxChatErrBody))
		return "", fmt.Errorf("chat API: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

var scoreRe = regexp.MustCompile(`[1-5]`)

// parseScore достаёт первую цифру 1..5 из ответа модели.
func parseScore(answer string) (int, error) {
	m := scoreRe.FindString(answer)
	if m == "" {
		return 0, fmt.Errorf("no score in answer %q", answer)
	}
	return strconv.Atoi(m)
}
