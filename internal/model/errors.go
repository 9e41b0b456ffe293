// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, remote, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRequiredField      = "REQUIRED_FIELD"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeInvalidPerspective = "INVALID_PERSPECTIVE"
	ErrCodeClientUnavailable  = "CLIENT_UNAVAILABLE"
)

// ErrClientUnavailable は接続設定が未完了でクライアントを生成できない場合のエラー。
// 設定が揃えば次回の呼び出しで再初期化される。
var ErrClientUnavailable = &APIError{
	Code:     ErrCodeClientUnavailable,
	Message:  "データベースクライアントが初期化されていません。",
	Category: "system",
	Action:   "SUPABASE_URL と SUPABASE_ANON_KEY を設定してください。",
}

// NewRequiredFieldError は必須項目の欠落エラーを生成する。
// 複数項目を指定した場合はまとめて1つのエラーとする。
func NewRequiredFieldError(fields ...string) *APIError {
	return &APIError{
		Code:     ErrCodeRequiredField,
		Message:  fmt.Sprintf("%s は必須です", strings.Join(fields, " と ")),
		Category: "validation",
		Action:   "必須項目を入力してください。",
	}
}

// NewInvalidStatusError はリクエストステータスが列挙値に含まれない場合のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %q", status),
		Category: "validation",
		Action:   "ステータスには pending、accepted、declined のいずれかを指定してください。",
	}
}

// NewInvalidPerspectiveError はペア一覧の視点が mentee/mentor 以外の場合のエラーを生成する。
func NewInvalidPerspectiveError(perspective string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPerspective,
		Message:  fmt.Sprintf("無効な視点です: %q", perspective),
		Category: "validation",
		Action:   "perspective には mentee または mentor を指定してください。",
	}
}

// IsValidationError はエラーが入力検証エラーかどうかを返す。
func IsValidationError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Category == "validation"
}

// RemoteError はリモートのテーブルAPIが返したエラーを表す。
// 内容は加工せずそのまま呼び出し元へ伝搬する。
type RemoteError struct {
	Status  int    // HTTPステータス（SQLバックエンドでは0）
	Code    string // PostgRESTエラーコードまたはSQLSTATE
	Message string
	Details string
	Hint    string
}

// Error はerrorインターフェースを実装する。
func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("remote error")
	if e.Code != "" {
		b.WriteString(" [" + e.Code + "]")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Details != "" {
		b.WriteString(" (" + e.Details + ")")
	}
	return b.String()
}
