package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mentorbridge/internal/bridge"
	"github.com/hitoshi/mentorbridge/internal/model"
	"github.com/hitoshi/mentorbridge/internal/security"
)

// --- モック定義 ---

// mockBridgeService はBridgeServiceInterfaceのモック実装。
type mockBridgeService struct {
	initFn                    func() error
	upsertUserFn              func(ctx context.Context, in bridge.UserInput) (*model.User, error)
	upsertMentorProfileFn     func(ctx context.Context, in bridge.MentorProfileInput) (*model.MentorProfile, error)
	createRequestFn           func(ctx context.Context, in bridge.RequestInput) (*model.Request, error)
	fetchMentorInboxFn        func(ctx context.Context, mentorEmail string) ([]model.RequestWithNames, error)
	updateRequestStatusFn     func(ctx context.Context, id string, status model.RequestStatus) (*model.Request, error)
	listActivePairsFn         func(ctx context.Context, email string, perspective bridge.Perspective) ([]model.RequestWithNames, error)
	createGoalFn              func(ctx context.Context, in bridge.GoalInput) (*model.Goal, error)
	adminFetchRequestsFn      func(ctx context.Context, status model.RequestStatus) ([]model.RequestWithNames, error)
	adminFetchMentorsJoinedFn func(ctx context.Context) ([]model.JoinedMentor, error)
	adminFetchMenteesFn       func(ctx context.Context) ([]model.MenteeSummary, error)
}

func (m *mockBridgeService) Init() error {
	if m.initFn != nil {
		return m.initFn()
	}
	return nil
}

func (m *mockBridgeService) UpsertUser(ctx context.Context, in bridge.UserInput) (*model.User, error) {
	if m.upsertUserFn != nil {
		return m.upsertUserFn(ctx, in)
	}
	return &model.User{Email: in.Email, Role: model.RoleMentee}, nil
}

func (m *mockBridgeService) UpsertMentorProfile(ctx context.Context, in bridge.MentorProfileInput) (*model.MentorProfile, error) {
	if m.upsertMentorProfileFn != nil {
		return m.upsertMentorProfileFn(ctx, in)
	}
	return &model.MentorProfile{UserEmail: in.UserEmail}, nil
}

func (m *mockBridgeService) CreateRequest(ctx context.Context, in bridge.RequestInput) (*model.Request, error) {
	if m.createRequestFn != nil {
		return m.createRequestFn(ctx, in)
	}
	return &model.Request{ID: "r1", MenteeEmail: in.MenteeEmail, MentorEmail: in.MentorEmail, Status: model.RequestStatusPending}, nil
}

func (m *mockBridgeService) FetchMentorInbox(ctx context.Context, mentorEmail string) ([]model.RequestWithNames, error) {
	if m.fetchMentorInboxFn != nil {
		return m.fetchMentorInboxFn(ctx, mentorEmail)
	}
	return nil, nil
}

func (m *mockBridgeService) UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus) (*model.Request, error) {
	if m.updateRequestStatusFn != nil {
		return m.updateRequestStatusFn(ctx, id, status)
	}
	return &model.Request{ID: id, Status: status}, nil
}

func (m *mockBridgeService) ListActivePairs(ctx context.Context, email string, perspective bridge.Perspective) ([]model.RequestWithNames, error) {
	if m.listActivePairsFn != nil {
		return m.listActivePairsFn(ctx, email, perspective)
	}
	return nil, nil
}

func (m *mockBridgeService) CreateGoal(ctx context.Context, in bridge.GoalInput) (*model.Goal, error) {
	if m.createGoalFn != nil {
		return m.createGoalFn(ctx, in)
	}
	return &model.Goal{ID: "g1", MenteeEmail: in.MenteeEmail, Title: in.Title, Status: "open"}, nil
}

func (m *mockBridgeService) AdminFetchRequests(ctx context.Context, status model.RequestStatus) ([]model.RequestWithNames, error) {
	if m.adminFetchRequestsFn != nil {
		return m.adminFetchRequestsFn(ctx, status)
	}
	return nil, nil
}

func (m *mockBridgeService) AdminFetchMentorsJoined(ctx context.Context) ([]model.JoinedMentor, error) {
	if m.adminFetchMentorsJoinedFn != nil {
		return m.adminFetchMentorsJoinedFn(ctx)
	}
	return nil, nil
}

func (m *mockBridgeService) AdminFetchMentees(ctx context.Context) ([]model.MenteeSummary, error) {
	if m.adminFetchMenteesFn != nil {
		return m.adminFetchMenteesFn(ctx)
	}
	return nil, nil
}

// --- テストヘルパー ---

func newTestHandler(svc BridgeServiceInterface) (*MentorshipHandler, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewMentorshipHandler(svc, security.NewTextSanitizer(), logger), &buf
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// --- POST /api/init ---

func TestMentorshipHandler_Init(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReady  bool
	}{
		{"初期化成功", nil, http.StatusOK, true},
		{"設定不足", model.ErrClientUnavailable, http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(&mockBridgeService{initFn: func() error { return tt.err }})
			w := httptest.NewRecorder()
			h.Init(w, httptest.NewRequest(http.MethodPost, "/api/init", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp initResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Ready != tt.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tt.wantReady)
			}
		})
	}
}

func TestMentorshipHandler_Init_FactoryError(t *testing.T) {
	h, _ := newTestHandler(&mockBridgeService{initFn: func() error { return errors.New("failed to create client") }})
	w := httptest.NewRecorder()
	h.Init(w, httptest.NewRequest(http.MethodPost, "/api/init", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// --- PUT /api/users ---

func TestMentorshipHandler_UpsertUser_Success(t *testing.T) {
	svc := &mockBridgeService{
		upsertUserFn: func(ctx context.Context, in bridge.UserInput) (*model.User, error) {
			if in.Email != "a@x" || in.Role != model.RoleMentor {
				t.Errorf("input = %+v", in)
			}
			if in.Name == nil || *in.Name != "Alice" {
				t.Errorf("name = %v, want Alice", in.Name)
			}
			return &model.User{Email: in.Email, Name: in.Name, Role: in.Role, CreatedAt: "2025-03-01T09:00:00Z"}, nil
		},
	}
	h, _ := newTestHandler(svc)

	w := httptest.NewRecorder()
	h.UpsertUser(w, jsonRequest(http.MethodPut, "/api/users", `{"email":"a@x","name":"Alice","role":"mentor"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var got model.User
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Email != "a@x" || got.CreatedAt == "" {
		t.Errorf("response = %+v", got)
	}
}

func TestMentorshipHandler_UpsertUser_InvalidJSON(t *testing.T) {
	called := false
	h, _ := newTestHandler(&mockBridgeService{
		upsertUserFn: func(ctx context.Context, in bridge.UserInput) (*model.User, error) {
			called = true
			return nil, nil
		},
	})

	w := httptest.NewRecorder()
	h.UpsertUser(w, jsonRequest(http.MethodPut, "/api/users", `{"email":`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", body["code"])
	}
	if called {
		t.Error("解析に失敗したリクエストはファサードへ渡さないべき")
	}
}

// --- エラーマッピング ---

func TestMentorshipHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"検証エラー", model.NewRequiredFieldError("email"), http.StatusBadRequest, model.ErrCodeRequiredField},
		{"クライアント未初期化", model.ErrClientUnavailable, http.StatusServiceUnavailable, model.ErrCodeClientUnavailable},
		{"リモートエラー", &model.RemoteError{Status: 409, Code: "23505", Message: "duplicate key"}, http.StatusBadGateway, "23505"},
		{"その他のエラー", errors.New("unexpected"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(&mockBridgeService{
				upsertUserFn: func(ctx context.Context, in bridge.UserInput) (*model.User, error) {
					return nil, tt.err
				},
			})

			w := httptest.NewRecorder()
			h.UpsertUser(w, jsonRequest(http.MethodPut, "/api/users", `{"email":"a@x"}`))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := parseAPIErrorResponse(t, w); body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestMentorshipHandler_RemoteErrorPassesThroughMessage(t *testing.T) {
	h, logs := newTestHandler(&mockBridgeService{
		adminFetchMenteesFn: func(ctx context.Context) ([]model.MenteeSummary, error) {
			return nil, &model.RemoteError{Code: "42501", Message: "permission denied for table users", Hint: "check RLS"}
		},
	})

	w := httptest.NewRecorder()
	h.AdminFetchMentees(w, httptest.NewRequest(http.MethodGet, "/api/admin/mentees", nil))

	body := parseAPIErrorResponse(t, w)
	if body["message"] != "permission denied for table users" || body["hint"] != "check RLS" {
		t.Errorf("リモートのメッセージはそのまま返すべき: %v", body)
	}
	if !strings.Contains(logs.String(), "42501") {
		t.Errorf("リモートエラーはログに記録されるべき: %s", logs.String())
	}
}

// --- PUT /api/mentors ---

func TestMentorshipHandler_UpsertMentorProfile_SanitizesBio(t *testing.T) {
	svc := &mockBridgeService{
		upsertMentorProfileFn: func(ctx context.Context, in bridge.MentorProfileInput) (*model.MentorProfile, error) {
			if in.Bio == nil || *in.Bio != "Go mentor" {
				t.Errorf("bio = %v, want sanitized %q", in.Bio, "Go mentor")
			}
			if len(in.Skills) != 2 || in.Skills[0] != "go" {
				t.Errorf("skills = %v", in.Skills)
			}
			if in.Timezone != nil {
				t.Errorf("timezone = %v, want nil", *in.Timezone)
			}
			return &model.MentorProfile{UserEmail: in.UserEmail, Bio: in.Bio, Skills: in.Skills}, nil
		},
	}
	h, _ := newTestHandler(svc)

	body := `{"user_email":"m@x","bio":"<script>alert(1)</script>Go <b>mentor</b>","skills":["go","sql"]}`
	w := httptest.NewRecorder()
	h.UpsertMentorProfile(w, jsonRequest(http.MethodPut, "/api/mentors", body))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// --- POST /api/requests ---

func TestMentorshipHandler_CreateRequest_Returns201AndSanitizes(t *testing.T) {
	svc := &mockBridgeService{
		createRequestFn: func(ctx context.Context, in bridge.RequestInput) (*model.Request, error) {
			if in.Note == nil || *in.Note != "hello" {
				t.Errorf("note = %v, want hello", in.Note)
			}
			if in.Interests != nil {
				t.Errorf("interests = %v, want nil", *in.Interests)
			}
			return &model.Request{ID: "r1", MenteeEmail: in.MenteeEmail, MentorEmail: in.MentorEmail, Status: model.RequestStatusPending, Note: in.Note}, nil
		},
	}
	h, _ := newTestHandler(svc)

	w := httptest.NewRecorder()
	h.CreateRequest(w, jsonRequest(http.MethodPost, "/api/requests", `{"mentee_email":"m@e.com","mentor_email":"t@e.com","note":"<i>hello</i>"}`))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var got model.Request
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "r1" || got.Status != model.RequestStatusPending {
		t.Errorf("response = %+v", got)
	}
}

// --- PATCH /api/requests/{id}/status ---

func TestMentorshipHandler_UpdateRequestStatus_UsesPathID(t *testing.T) {
	svc := &mockBridgeService{
		updateRequestStatusFn: func(ctx context.Context, id string, status model.RequestStatus) (*model.Request, error) {
			if id != "req-42" {
				t.Errorf("id = %q, want req-42", id)
			}
			if status != model.RequestStatusAccepted {
				t.Errorf("status = %q, want accepted", status)
			}
			decided := "2025-03-02T12:30:00.000Z"
			return &model.Request{ID: id, Status: status, DecidedAt: &decided}, nil
		},
	}
	h, _ := newTestHandler(svc)

	req := withChiURLParam(jsonRequest(http.MethodPatch, "/api/requests/req-42/status", `{"status":"accepted"}`), "id", "req-42")
	w := httptest.NewRecorder()
	h.UpdateRequestStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got map[string]interface{}
	json.NewDecoder(w.Body).Decode(&got)
	if got["decided_at"] != "2025-03-02T12:30:00.000Z" {
		t.Errorf("decided_at = %v", got["decided_at"])
	}
}

// --- GET /api/mentors/{email}/inbox ---

func TestMentorshipHandler_FetchMentorInbox_UnescapesEmail(t *testing.T) {
	svc := &mockBridgeService{
		fetchMentorInboxFn: func(ctx context.Context, mentorEmail string) ([]model.RequestWithNames, error) {
			if mentorEmail != "t@e.com" {
				t.Errorf("mentorEmail = %q, want t@e.com", mentorEmail)
			}
			return nil, nil
		},
	}
	h, _ := newTestHandler(svc)

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/mentors/t%40e.com/inbox", nil), "email", "t%40e.com")
	w := httptest.NewRecorder()
	h.FetchMentorInbox(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	// 0件は null ではなく空配列
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

// --- GET /api/pairs ---

func TestMentorshipHandler_ListActivePairs_PassesQuery(t *testing.T) {
	svc := &mockBridgeService{
		listActivePairsFn: func(ctx context.Context, email string, perspective bridge.Perspective) ([]model.RequestWithNames, error) {
			if email != "a@x" || perspective != bridge.PerspectiveMentor {
				t.Errorf("email = %q, perspective = %q", email, perspective)
			}
			name := "Mia"
			return []model.RequestWithNames{{
				Request:    model.Request{ID: "r1", MenteeEmail: "m@x", MentorEmail: "a@x", Status: model.RequestStatusAccepted},
				MenteeName: &name,
			}}, nil
		},
	}
	h, _ := newTestHandler(svc)

	w := httptest.NewRecorder()
	h.ListActivePairs(w, httptest.NewRequest(http.MethodGet, "/api/pairs?email=a@x&perspective=mentor", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0]["mentee_name"] != "Mia" || got[0]["id"] != "r1" {
		t.Errorf("response = %v", got)
	}
	if v, ok := got[0]["mentor_name"]; !ok || v != nil {
		t.Errorf("mentor_name は null で返すべき: %v", v)
	}
}

func TestMentorshipHandler_ListActivePairs_InvalidPerspective(t *testing.T) {
	svc := &mockBridgeService{
		listActivePairsFn: func(ctx context.Context, email string, perspective bridge.Perspective) ([]model.RequestWithNames, error) {
			return nil, model.NewInvalidPerspectiveError(string(perspective))
		},
	}
	h, _ := newTestHandler(svc)

	w := httptest.NewRecorder()
	h.ListActivePairs(w, httptest.NewRequest(http.MethodGet, "/api/pairs?email=a@x&perspective=admin", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- POST /api/goals ---

func TestMentorshipHandler_CreateGoal_Returns201(t *testing.T) {
	svc := &mockBridgeService{
		createGoalFn: func(ctx context.Context, in bridge.GoalInput) (*model.Goal, error) {
			if in.Progress == nil || *in.Progress != 10 {
				t.Errorf("progress = %v, want 10", in.Progress)
			}
			if in.Notes == nil || *in.Notes != "read chapter 1" {
				t.Errorf("notes = %v", in.Notes)
			}
			return &model.Goal{ID: "g1", MenteeEmail: in.MenteeEmail, Title: in.Title, Status: "open", Progress: *in.Progress}, nil
		},
	}
	h, _ := newTestHandler(svc)

	w := httptest.NewRecorder()
	h.CreateGoal(w, jsonRequest(http.MethodPost, "/api/goals", `{"mentee_email":"a@x","title":"Learn X","progress":10,"notes":"<p>read chapter 1</p>"}`))

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

// --- 管理画面 ---

func TestMentorshipHandler_AdminFetchRequests_StatusQuery(t *testing.T) {
	var gotStatus model.RequestStatus = "unset"
	svc := &mockBridgeService{
		adminFetchRequestsFn: func(ctx context.Context, status model.RequestStatus) ([]model.RequestWithNames, error) {
			gotStatus = status
			return nil, nil
		},
	}
	h, _ := newTestHandler(svc)

	h.AdminFetchRequests(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/admin/requests?status=declined", nil))
	if gotStatus != model.RequestStatusDeclined {
		t.Errorf("status = %q, want declined", gotStatus)
	}

	h.AdminFetchRequests(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/admin/requests", nil))
	if gotStatus != "" {
		t.Errorf("未指定の場合は空文字列を渡すべき: %q", gotStatus)
	}
}

func TestMentorshipHandler_AdminFetchMentors(t *testing.T) {
	svc := &mockBridgeService{
		adminFetchMentorsJoinedFn: func(ctx context.Context) ([]model.JoinedMentor, error) {
			return []model.JoinedMentor{{UserEmail: "m@x", Name: "Max", Skills: "go|sql"}}, nil
		},
	}
	h, _ := newTestHandler(svc)

	w := httptest.NewRecorder()
	h.AdminFetchMentors(w, httptest.NewRequest(http.MethodGet, "/api/admin/mentors", nil))

	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `"skills":"go|sql"`) || !strings.Contains(string(body), `"timezone":""`) {
		t.Errorf("body = %s", body)
	}
}
