package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/mentorbridge/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。リモートエラーの場合は details と hint も含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
	Details  string `json:"details,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeErrorBody(w, statusCode, ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteRemoteErrorResponse はリモートが返したエラーを加工せずに統一フォーマットで書き込む。
func WriteRemoteErrorResponse(w http.ResponseWriter, statusCode int, remoteErr *model.RemoteError) {
	writeErrorBody(w, statusCode, ErrorResponseBody{
		Code:     remoteErr.Code,
		Message:  remoteErr.Message,
		Category: "remote",
		Action:   "入力内容とデータベースの状態を確認してください。",
		Details:  remoteErr.Details,
		Hint:     remoteErr.Hint,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body ErrorResponseBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
