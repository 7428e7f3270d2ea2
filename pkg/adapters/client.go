package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shouni/video-task-kit/pkg/domain"
	"github.com/shouni/video-task-kit/pkg/request"
	"github.com/shouni/video-task-kit/pkg/utils"
)

const (
	maxResponseBytes     = 1 << 20
	defaultStatusTimeout = 10 * time.Second
	tracerName           = "github.com/shouni/video-task-kit/pkg/adapters"
)

// TaskClientConfig はプロバイダのエンドポイントと認証情報です。
type TaskClientConfig struct {
	APIURL        string // 作成エンドポイント
	TaskURL       string // ステータス照会のベース URL
	APIKey        string
	StatusTimeout time.Duration // ステータス照会 1 回あたりのタイムアウト
}

// TaskClient は非同期生成 API のタスク作成とステータス照会を行うアダプターです。
type TaskClient struct {
	http   *httpkit.Client
	cfg    TaskClientConfig
	tracer trace.Tracer
}

// NewTaskClient は依存関係を注入して TaskClient を初期化します。
// APIKey が空でも生成でき、呼び出し時に ConfigurationError を返します。
func NewTaskClient(pool *ClientPool, cfg TaskClientConfig) (*TaskClient, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("invalid api_url %q: %w", cfg.APIURL, err)
	}
	if _, err := url.ParseRequestURI(cfg.TaskURL); err != nil {
		return nil, fmt.Errorf("invalid task_url %q: %w", cfg.TaskURL, err)
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = defaultStatusTimeout
	}
	cfg.TaskURL = strings.TrimRight(cfg.TaskURL, "/")
	// プロバイダ呼び出しは再試行しないため Do のみを使い、接続はプールに委ねます。
	// エンドポイントは設定で与えられる信頼済みの宛先なので SSRF 検証は行いません。
	hc := httpkit.New(cfg.StatusTimeout,
		httpkit.WithHTTPClient(pool),
		httpkit.WithSkipNetworkValidation(true),
	)
	return &TaskClient{http: hc, cfg: cfg, tracer: otel.Tracer(tracerName)}, nil
}

// HasCredential は API キーが設定されているかどうかを返します。
func (c *TaskClient) HasCredential() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// Submit は生成タスクを作成し、タスク ID を返します。再試行はしません。
// HTTP 200 かつ task_id が空でない場合のみ成功です。
func (c *TaskClient) Submit(ctx context.Context, payload *request.Payload) (domain.TaskHandle, error) {
	if !c.HasCredential() {
		return domain.TaskHandle{}, domain.NewConfigurationError("api_key is not configured")
	}

	ctx, span := c.tracer.Start(ctx, "videotask.submit")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload.Body))
	if err != nil {
		return domain.TaskHandle{}, domain.NewSubmissionError("failed to build request", 0, "", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", payload.ContentType)

	status, body, err := c.do(req)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return domain.TaskHandle{}, domain.NewSubmissionError("request failed", status, "", err)
	}
	if status != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return domain.TaskHandle{}, domain.NewSubmissionError("API request failed", status, string(body), nil)
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		span.SetStatus(codes.Error, "invalid body")
		return domain.TaskHandle{}, domain.NewSubmissionError("invalid response body", status, string(body), err)
	}
	taskID := strings.TrimSpace(resp.TaskID)
	if taskID == "" {
		span.SetStatus(codes.Error, "missing task_id")
		return domain.TaskHandle{}, domain.NewSubmissionError("task_id missing in response", status, string(body), nil)
	}

	span.SetAttributes(attribute.String("videotask.task_id", taskID))
	slog.InfoContext(ctx, "生成タスクを作成しました", "task_id", taskID)
	return domain.TaskHandle{TaskID: taskID}, nil
}

// QueryStatus はタスクのステータスを 1 回照会します。
// 通信エラーと 200 以外の応答は TransientPollError です。
func (c *TaskClient) QueryStatus(ctx context.Context, taskID string) (domain.TaskStatus, error) {
	if !c.HasCredential() {
		return domain.TaskStatus{}, domain.NewConfigurationError("api_key is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatusTimeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "videotask.query_status",
		trace.WithAttributes(attribute.String("videotask.task_id", taskID)))
	defer span.End()

	statusURL := c.cfg.TaskURL + "/" + url.PathEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return domain.TaskStatus{}, domain.NewTransientPollError(0, "", err)
	}
	c.setHeaders(req)

	status, body, err := c.do(req)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		return domain.TaskStatus{}, domain.NewTransientPollError(status, "", err)
	}
	if status != http.StatusOK {
		return domain.TaskStatus{}, domain.NewTransientPollError(status, utils.Truncate(string(body), 512), nil)
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.TaskStatus{}, domain.NewTransientPollError(status, utils.Truncate(string(body), 512), err)
	}
	st := classifyStatus(resp)
	span.SetAttributes(attribute.String("videotask.status", st.State.String()))
	return st, nil
}

func (c *TaskClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
}

func (c *TaskClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("レスポンスの読み込みに失敗しました: %w", err)
	}
	return resp.StatusCode, body, nil
}
