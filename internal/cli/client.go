package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ProgressResponse — прогресс job из API.
type ProgressResponse struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// ResultResponse — результат job из API.
type ResultResponse struct {
	Success       bool     `json:"success"`
	Skipped       bool     `json:"skipped,omitempty"`
	Error         string   `json:"error,omitempty"`
	ProducedCount int      `json:"produced_count,omitempty"`
	ArtifactURLs  []string `json:"artifact_urls,omitempty"`
	TotalBytes    int64    `json:"total_bytes,omitempty"`
}

// JobResponse — job из API.
type JobResponse struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind"`
	Status     string           `json:"status"`
	Progress   ProgressResponse `json:"progress"`
	Result     *ResultResponse  `json:"result,omitempty"`
	CreatedAt  string           `json:"created_at"`
	FinishedAt string           `json:"finished_at,omitempty"`
}

// Terminal сообщает, достигла ли job конечного состояния.
func (j *JobResponse) Terminal() bool {
	switch j.Status {
	case "SUCCEEDED", "FAILED":
		return true
	}
	return false
}

// QueueStatsResponse — статистика очередей из API.
type QueueStatsResponse struct {
	Sync  int64 `json:"sync_pending"`
	Audio int64 `json:"audio_pending"`
}

// CleanupResponse — итог уборки очередей.
type CleanupResponse struct {
	SyncRemoved  int `json:"sync_removed"`
	AudioRemoved int `json:"audio_removed"`
}

// ProcessOneResponse — итог single-shot обработки.
type ProcessOneResponse struct {
	Processed bool   `json:"processed"`
	JobID     string `json:"job_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewsItemResponse — новость из API.
type NewsItemResponse struct {
	Title      string `json:"title"`
	Link       string `json:"link"`
	Source     string `json:"source"`
	Category   string `json:"category"`
	Summary    string `json:"summary,omitempty"`
	Importance int    `json:"importance"`
}

// --- Request types ---

// EnqueueSyncRequest — постановка sync-джобы.
type EnqueueSyncRequest struct {
	ForceRefresh bool `json:"force_refresh,omitempty"`
	ItemCount    int  `json:"item_count,omitempty"`
}

// EnqueueAudioRequest — постановка audio-джобы.
type EnqueueAudioRequest struct {
	Date       string `json:"date,omitempty"`
	Script     string `json:"script"`
	BestEffort bool   `json:"best_effort,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для news API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// EnqueueSync ставит sync-джобу.
func (c *Client) EnqueueSync(req EnqueueSyncRequest) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs/sync", req, &job)
	return &job, err
}

// EnqueueAudio ставит audio-джобу.
func (c *Client) EnqueueAudio(req EnqueueAudioRequest) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs/audio", req, &job)
	return &job, err
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// CancelJob отменяет pending job.
func (c *Client) CancelJob(id string) error {
	return c.post("/api/v1/jobs/"+id+"/cancel", nil, nil)
}

// QueueStats возвращает размеры очередей.
func (c *Client) QueueStats() (*QueueStatsResponse, error) {
	var stats QueueStatsResponse
	err := c.get("/api/v1/queues/stats", &stats)
	return &stats, err
}

// Cleanup удаляет записи jobs старше retention в обеих очередях.
func (c *Client) Cleanup() (*CleanupResponse, error) {
	var out CleanupResponse
	err := c.post("/api/v1/queues/cleanup", nil, &out)
	return &out, err
}

// ProcessOne запускает обработку одной job на сервере.
func (c *Client) ProcessOne() (*ProcessOneResponse, error) {
	var out ProcessOneResponse
	err := c.post("/api/v1/worker/process-one", nil, &out)
	return &out, err
}

// LatestSync возвращает последнюю sync-джобу за дату (пустая дата — сегодня).
func (c *Client) LatestSync(date string) (*JobResponse, error) {
	path := "/api/v1/sync/latest"
	if date != "" {
		path += "?" + url.Values{"date": {date}}.Encode()
	}
	var job JobResponse
	err := c.get(path, &job)
	return &job, err
}

// NewsByDate возвращает сохранённые новости за дату.
func (c *Client) NewsByDate(date string) ([]NewsItemResponse, error) {
	var items []NewsItemResponse
	err := c.get("/api/v1/news/"+date, &items)
	return items, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
