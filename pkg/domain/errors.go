package domain

import (
	"errors"
	"fmt"
)

// ErrorKind はエラー分類です。
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfiguration
	KindUserInput
	KindSubmission
	KindTransientPoll
	KindProviderFailure
	KindMalformedSuccess
	KindPollTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUserInput:
		return "user_input"
	case KindSubmission:
		return "submission"
	case KindTransientPoll:
		return "transient_poll"
	case KindProviderFailure:
		return "provider_failure"
	case KindMalformedSuccess:
		return "malformed_success"
	case KindPollTimeout:
		return "poll_timeout"
	default:
		return "unknown"
	}
}

// Retryable はポーラーが再試行してよい分類かどうかを返します。
func (k ErrorKind) Retryable() bool {
	return k == KindTransientPoll
}

// Error は動画生成ワークフローの分類済みエラーです。
// StatusCode と Body はオペレーター向けの診断情報で、利用者には Reason のみ見せます。
type Error struct {
	Kind       ErrorKind
	Code       string // プロバイダのエラーコード
	Reason     string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if s := e.Summary(); s != "" {
		msg += ": " + s
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Summary は利用者向けの要約です。コードがあれば先頭に付けます。
func (e *Error) Summary() string {
	if e.Code != "" {
		if e.Reason == "" {
			return e.Code
		}
		return e.Code + ": " + e.Reason
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf は err の分類を返します。分類済みエラーでなければ KindUnknown です。
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// UserReason は利用者に見せる要約を返します。
func UserReason(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if s := de.Summary(); s != "" {
			return s
		}
		return de.Kind.String()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func NewConfigurationError(reason string) *Error {
	return &Error{Kind: KindConfiguration, Reason: reason}
}

func NewUserInputError(reason string) *Error {
	return &Error{Kind: KindUserInput, Reason: reason}
}

// NewSubmissionError は作成エンドポイントの失敗を表します。再試行はしません。
func NewSubmissionError(reason string, status int, body string, err error) *Error {
	return &Error{Kind: KindSubmission, Reason: reason, StatusCode: status, Body: body, Err: err}
}

func NewTransientPollError(status int, body string, err error) *Error {
	return &Error{Kind: KindTransientPoll, Reason: "status query failed", StatusCode: status, Body: body, Err: err}
}

// NewProviderFailure はプロバイダが明示的に拒否したことを表します。code は空でも構いません。
func NewProviderFailure(code, reason string) *Error {
	return &Error{Kind: KindProviderFailure, Code: code, Reason: reason}
}

func NewMalformedSuccess(body string) *Error {
	return &Error{Kind: KindMalformedSuccess, Reason: "success status without output.file_url", Body: body}
}

func NewPollTimeout(attempts int) *Error {
	return &Error{Kind: KindPollTimeout, Reason: fmt.Sprintf("no terminal status after %d attempts", attempts)}
}
