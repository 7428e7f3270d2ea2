package adapters

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/video-task-kit/pkg/domain"
)

// submitResponse は作成エンドポイントのレスポンスです。
type submitResponse struct {
	TaskID string `json:"task_id"`
}

// statusResponse はステータスエンドポイントのレスポンスです。
// プロバイダのフィールド型は揺れるため、判定に必要な値以外は RawMessage で受けて個別に緩く解釈します。
type statusResponse struct {
	Status      json.RawMessage `json:"status"`
	Error       any             `json:"error"`
	Message     json.RawMessage `json:"message"`
	Output      json.RawMessage `json:"output"`
	StartedAt   json.RawMessage `json:"started_at"`
	CompletedAt json.RawMessage `json:"completed_at"`
}

type output struct {
	FileURL string `json:"file_url"`
}

// classifyStatus はレスポンスを TaskStatus に分類します。
// 既知の終端文字列以外はすべて Pending です。
func classifyStatus(r statusResponse) domain.TaskStatus {
	status := rawString(r.Status)
	st := domain.TaskStatus{
		Raw:         status,
		StartedAt:   rawTimestamp(r.StartedAt),
		CompletedAt: rawTimestamp(r.CompletedAt),
	}

	if code := errorCode(r.Error); code != "" {
		st.State = domain.TaskFailed
		st.ErrorCode = code
		st.Message = rawString(r.Message)
		return st
	}

	switch {
	case strings.EqualFold(status, domain.StatusSuccess):
		st.State = domain.TaskSucceeded
		// オブジェクトでない output は URL なしとして扱い、呼び出し側で MalformedSuccess になります。
		st.ResultURL = outputURL(r.Output)
	case strings.EqualFold(status, domain.StatusFailed):
		st.State = domain.TaskFailed
		st.Message = rawString(r.Message)
	case strings.EqualFold(status, domain.StatusCancelled):
		st.State = domain.TaskCancelled
		st.Message = rawString(r.Message)
	default:
		st.State = domain.TaskPending
	}
	return st
}

// outputURL は output オブジェクトから file_url を取り出します。
func outputURL(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var o output
	if err := json.Unmarshal(raw, &o); err != nil {
		return ""
	}
	return strings.TrimSpace(o.FileURL)
}

// rawString は文字列ならそのまま、それ以外の JSON 値はコンパクトな JSON テキストとして返します。
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// rawTimestamp は数値、数値文字列、RFC3339 文字列をエポックミリ秒に変換します。解釈できなければ 0 です。
func rawTimestamp(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UnixMilli()
	}
	return 0
}

// errorCode は error フィールドを文字列化します。空文字列や false、null はエラーなしとみなします。
func errorCode(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(e)
	case bool:
		if !e {
			return ""
		}
		return "true"
	case float64:
		if e == 0 {
			return ""
		}
	case map[string]any:
		if len(e) == 0 {
			return ""
		}
	case []any:
		if len(e) == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "unknown_error"
	}
	return string(b)
}
