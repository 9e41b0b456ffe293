package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/mentorbridge/internal/middleware"
	"github.com/hitoshi/mentorbridge/internal/model"
)

// errInvalidRequest はリクエストボディを解析できない場合のエラー。
var errInvalidRequest = &model.APIError{
	Code:     "INVALID_REQUEST",
	Message:  "リクエストボディの解析に失敗しました。",
	Category: "validation",
	Action:   "正しいJSON形式でリクエストしてください。",
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はファサードから返されたエラーを適切なHTTPステータスコードに変換する。
//   - 入力検証エラー: 400
//   - クライアント未初期化: 503
//   - リモートエラー: 502（コードとメッセージはそのまま返す）
//   - それ以外: 500
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var remoteErr *model.RemoteError
	if errors.As(err, &remoteErr) {
		logger.Warn("remote error",
			slog.String("code", remoteErr.Code),
			slog.String("message", remoteErr.Message),
		)
		middleware.WriteRemoteErrorResponse(w, http.StatusBadGateway, remoteErr)
		return
	}

	logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch {
	case apiErr.Code == model.ErrCodeClientUnavailable:
		return http.StatusServiceUnavailable
	case model.IsValidationError(apiErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
