package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mentorbridge/internal/bridge"
	"github.com/hitoshi/mentorbridge/internal/model"
)

// BridgeServiceInterface はハンドラーが必要とするファサードのインターフェース。
type BridgeServiceInterface interface {
	Init() error
	UpsertUser(ctx context.Context, in bridge.UserInput) (*model.User, error)
	UpsertMentorProfile(ctx context.Context, in bridge.MentorProfileInput) (*model.MentorProfile, error)
	CreateRequest(ctx context.Context, in bridge.RequestInput) (*model.Request, error)
	FetchMentorInbox(ctx context.Context, mentorEmail string) ([]model.RequestWithNames, error)
	UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus) (*model.Request, error)
	ListActivePairs(ctx context.Context, email string, perspective bridge.Perspective) ([]model.RequestWithNames, error)
	CreateGoal(ctx context.Context, in bridge.GoalInput) (*model.Goal, error)
	AdminFetchRequests(ctx context.Context, status model.RequestStatus) ([]model.RequestWithNames, error)
	AdminFetchMentorsJoined(ctx context.Context) ([]model.JoinedMentor, error)
	AdminFetchMentees(ctx context.Context) ([]model.MenteeSummary, error)
}

// TextSanitizer は自由記述テキストからHTMLを取り除く。
type TextSanitizer interface {
	SanitizePtr(raw *string) *string
}

// MentorshipHandler はメンタリング操作のHTTPハンドラー。
// 自由記述の項目はサニタイズしてからファサードへ渡す。
type MentorshipHandler struct {
	service   BridgeServiceInterface
	sanitizer TextSanitizer
	logger    *slog.Logger
}

// NewMentorshipHandler はMentorshipHandlerを生成する。
func NewMentorshipHandler(service BridgeServiceInterface, sanitizer TextSanitizer, logger *slog.Logger) *MentorshipHandler {
	return &MentorshipHandler{
		service:   service,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// initResponse は初期化結果のレスポンス。
type initResponse struct {
	Ready bool `json:"ready"`
}

// updateStatusRequest はステータス更新リクエストのボディ。
type updateStatusRequest struct {
	Status model.RequestStatus `json:"status"`
}

// Init はクライアントを初期化する。設定不足の場合も200で ready=false を返す。
// POST /api/init
func (h *MentorshipHandler) Init(w http.ResponseWriter, r *http.Request) {
	err := h.service.Init()
	if err != nil && !errors.Is(err, model.ErrClientUnavailable) {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, initResponse{Ready: err == nil})
}

// UpsertUser はユーザーを作成または更新する。
// PUT /api/users
func (h *MentorshipHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var in bridge.UserInput
	if !decodeBody(w, r, &in) {
		return
	}

	user, err := h.service.UpsertUser(r.Context(), in)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpsertMentorProfile はメンタープロフィールを作成または更新する。
// PUT /api/mentors
func (h *MentorshipHandler) UpsertMentorProfile(w http.ResponseWriter, r *http.Request) {
	var in bridge.MentorProfileInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.Bio = h.sanitizer.SanitizePtr(in.Bio)

	profile, err := h.service.UpsertMentorProfile(r.Context(), in)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// CreateRequest はメンタリング申請を作成する。
// POST /api/requests
func (h *MentorshipHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var in bridge.RequestInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.Note = h.sanitizer.SanitizePtr(in.Note)
	in.Interests = h.sanitizer.SanitizePtr(in.Interests)

	req, err := h.service.CreateRequest(r.Context(), in)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// UpdateRequestStatus は申請のステータスを更新する。
// PATCH /api/requests/{id}/status
func (h *MentorshipHandler) UpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body updateStatusRequest
	if !decodeBody(w, r, &body) {
		return
	}

	req, err := h.service.UpdateRequestStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// FetchMentorInbox はメンター宛ての申請一覧を返す。
// GET /api/mentors/{email}/inbox
func (h *MentorshipHandler) FetchMentorInbox(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRequiredFieldError("mentor_email"))
		return
	}

	rows, err := h.service.FetchMentorInbox(r.Context(), email)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// ListActivePairs は承認済みのペア一覧を返す。
// GET /api/pairs?email=...&perspective=mentee|mentor
func (h *MentorshipHandler) ListActivePairs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rows, err := h.service.ListActivePairs(r.Context(), q.Get("email"), bridge.Perspective(q.Get("perspective")))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// CreateGoal は目標を作成する。
// POST /api/goals
func (h *MentorshipHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var in bridge.GoalInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.Notes = h.sanitizer.SanitizePtr(in.Notes)

	goal, err := h.service.CreateGoal(r.Context(), in)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// AdminFetchRequests は全申請を返す。statusクエリで絞り込める。
// GET /api/admin/requests
func (h *MentorshipHandler) AdminFetchRequests(w http.ResponseWriter, r *http.Request) {
	status := model.RequestStatus(r.URL.Query().Get("status"))

	rows, err := h.service.AdminFetchRequests(r.Context(), status)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// AdminFetchMentors はメンターとプロフィールの結合一覧を返す。
// GET /api/admin/mentors
func (h *MentorshipHandler) AdminFetchMentors(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.AdminFetchMentorsJoined(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// AdminFetchMentees はメンティー一覧を返す。
// GET /api/admin/mentees
func (h *MentorshipHandler) AdminFetchMentees(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.AdminFetchMentees(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// decodeBody はリクエストボディをJSONとしてデコードする。
// 失敗した場合は400を書き込みfalseを返す。
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, errInvalidRequest)
		return false
	}
	return true
}

// nonNil は空の一覧を null ではなく [] としてエンコードするために使う。
func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
