package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/mentorbridge/internal/model"
)

func TestFrom_DefaultsToSelectAll(t *testing.T) {
	q := From("users")
	if q.Table != "users" {
		t.Errorf("Table = %q, want users", q.Table)
	}
	if q.Op != OpSelect {
		t.Errorf("Op = %q, want select", q.Op)
	}
	if q.SelectedColumns() != "*" {
		t.Errorf("SelectedColumns() = %q, want *", q.SelectedColumns())
	}
}

func TestQuery_BuilderDoesNotAlias(t *testing.T) {
	base := From("v_requests_with_names").Select("*").Eq("status", "accepted")
	mentee := base.Eq("mentee_email", "a@x")
	mentor := base.Eq("mentor_email", "b@x")

	if len(base.Filters) != 1 {
		t.Fatalf("base のフィルタが変更された: %+v", base.Filters)
	}
	if mentee.Filters[1].Column != "mentee_email" {
		t.Errorf("mentee 側のフィルタ = %+v", mentee.Filters)
	}
	if mentor.Filters[1].Column != "mentor_email" {
		t.Errorf("mentor 側のフィルタ = %+v", mentor.Filters)
	}
}

func TestQuery_UpsertWithConflictTarget(t *testing.T) {
	q := From("mentors").Upsert(map[string]any{"user_email": "m@x"}, "user_email").One()
	if q.Op != OpUpsert {
		t.Errorf("Op = %q, want upsert", q.Op)
	}
	if len(q.OnConflict) != 1 || q.OnConflict[0] != "user_email" {
		t.Errorf("OnConflict = %v, want [user_email]", q.OnConflict)
	}
	if !q.Single {
		t.Error("One() の後は Single = true であるべき")
	}
}

func TestQuery_OrderBy(t *testing.T) {
	q := From("users").OrderBy("created_at", false)
	if q.Order == nil || q.Order.Column != "created_at" || q.Order.Ascending {
		t.Errorf("Order = %+v, want created_at desc", q.Order)
	}
}

func TestDecodeRows_Single(t *testing.T) {
	var u model.User
	if err := DecodeRows([]byte(`[{"email":"a@x","role":"mentee","name":null}]`), true, &u); err != nil {
		t.Fatalf("DecodeRows がエラーを返した: %v", err)
	}
	if u.Email != "a@x" || u.Role != model.RoleMentee || u.Name != nil {
		t.Errorf("デコード結果 = %+v", u)
	}
}

func TestDecodeRows_SingleWithWrongRowCount(t *testing.T) {
	for _, raw := range []string{`[]`, `[{"email":"a"},{"email":"b"}]`} {
		var u model.User
		err := DecodeRows([]byte(raw), true, &u)
		var remoteErr *model.RemoteError
		if !errors.As(err, &remoteErr) {
			t.Fatalf("%s: RemoteError が返されるべき: %v", raw, err)
		}
		if remoteErr.Code != "PGRST116" {
			t.Errorf("Code = %q, want PGRST116", remoteErr.Code)
		}
	}
}

func TestDecodeRows_Many(t *testing.T) {
	var users []model.User
	if err := DecodeRows([]byte(`[{"email":"a"},{"email":"b"}]`), false, &users); err != nil {
		t.Fatalf("DecodeRows がエラーを返した: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("len = %d, want 2", len(users))
	}
}

func TestBodyColumns_RejectsNonObject(t *testing.T) {
	if _, err := BodyColumns([]string{"a"}); err == nil {
		t.Error("配列のペイロードはエラーになるべき")
	}
	cols, err := BodyColumns(model.User{Email: "a@x", Role: model.RoleMentee})
	if err != nil {
		t.Fatalf("BodyColumns がエラーを返した: %v", err)
	}
	if string(cols["name"]) != "null" {
		t.Errorf("name = %s, want null", cols["name"])
	}
	if _, ok := cols["created_at"]; ok {
		t.Error("空の created_at はペイロードに含まれないべき")
	}
}

type recordingObserver struct {
	queries []Query
	errs    []error
}

func (o *recordingObserver) ObserveQuery(q Query, d time.Duration, err error) {
	o.queries = append(o.queries, q)
	o.errs = append(o.errs, err)
}

type stubExecutor struct {
	err error
}

func (s stubExecutor) Execute(ctx context.Context, q Query, dest any) error {
	return s.err
}

func TestObserved_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	remoteErr := &model.RemoteError{Code: "42501"}
	exec := Observed(stubExecutor{err: remoteErr}, obs)

	err := exec.Execute(context.Background(), From("goals").Insert(map[string]any{}), nil)
	if err != remoteErr {
		t.Errorf("エラーはそのまま返されるべき: got %v", err)
	}
	if len(obs.queries) != 1 || obs.queries[0].Table != "goals" {
		t.Errorf("観測されたクエリ = %+v", obs.queries)
	}
	if obs.errs[0] != remoteErr {
		t.Errorf("観測されたエラー = %v", obs.errs[0])
	}
}

func TestObserved_NilObserverReturnsNext(t *testing.T) {
	next := stubExecutor{}
	if got := Observed(next, nil); got != Executor(next) {
		t.Error("observer が nil の場合は next をそのまま返すべき")
	}
}
