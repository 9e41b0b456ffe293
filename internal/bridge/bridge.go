package bridge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/mentorbridge/internal/model"
	"github.com/hitoshi/mentorbridge/internal/query"
)

// listSeparator は管理画面向けにリスト項目を平坦化する際の区切り文字。
const listSeparator = "|"

// decidedAtLayout は decided_at の書式（ミリ秒精度のUTC ISO 8601）。
const decidedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Bridge はメンタリングデータのファサード。
// 複数ステップの書き込みはトランザクションではなく、途中で失敗した場合は
// それまでに書き込んだ行が残る。
type Bridge struct {
	handle *Handle
	logger *slog.Logger
	now    func() time.Time
}

// New はBridgeを生成する。
func New(handle *Handle, logger *slog.Logger) *Bridge {
	return &Bridge{
		handle: handle,
		logger: logger,
		now:    time.Now,
	}
}

// Init はクライアントを初期化する。
// 設定不足の場合は model.ErrClientUnavailable を返す。
func (b *Bridge) Init() error {
	_, err := b.handle.Get()
	return err
}

// UpsertUser はemailをキーにユーザーを作成または更新する。
// Roleが未指定の場合は mentee、Nameが未指定の場合はNULLとする。
func (b *Bridge) UpsertUser(ctx context.Context, in UserInput) (*model.User, error) {
	if in.Email == "" {
		return nil, model.NewRequiredFieldError("email")
	}
	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = model.RoleMentee
	}
	row := model.User{
		Email: in.Email,
		Name:  nullable(in.Name),
		Role:  role,
	}

	var out model.User
	if err := b.execute(ctx, exec, "upsert_user", query.From(model.TableUsers).Upsert(row).One(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertMentorProfile はメンターユーザーを作成または更新した上で、
// user_emailをキーにメンタープロフィールを作成または更新する。
// ユーザーの更新後にプロフィールの更新が失敗した場合、ユーザー行は残る。
func (b *Bridge) UpsertMentorProfile(ctx context.Context, in MentorProfileInput) (*model.MentorProfile, error) {
	if in.UserEmail == "" {
		return nil, model.NewRequiredFieldError("user_email")
	}
	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	if _, err := b.UpsertUser(ctx, UserInput{Email: in.UserEmail, Role: model.RoleMentor}); err != nil {
		return nil, err
	}

	row := model.MentorProfile{
		UserEmail:    in.UserEmail,
		Timezone:     nullable(in.Timezone),
		Availability: in.Availability,
		Types:        in.Types,
		Skills:       in.Skills,
		Topics:       in.Topics,
		Bio:          nullable(in.Bio),
		MeetingLink:  nullable(in.MeetingLink),
		LinkedIn:     nullable(in.LinkedIn),
	}

	var out model.MentorProfile
	q := query.From(model.TableMentors).Upsert(row, "user_email").One()
	if err := b.execute(ctx, exec, "upsert_mentor_profile", q, &out); err != nil {
		b.logPartialWrite("upsert_mentor_profile", model.TableMentors, err)
		return nil, err
	}
	return &out, nil
}

// CreateRequest はメンティーとメンターのユーザーを作成または更新した上で、
// pending状態の申請を1件作成する。
func (b *Bridge) CreateRequest(ctx context.Context, in RequestInput) (*model.Request, error) {
	if in.MenteeEmail == "" || in.MentorEmail == "" {
		return nil, model.NewRequiredFieldError("mentee_email", "mentor_email")
	}
	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	if _, err := b.UpsertUser(ctx, UserInput{Email: in.MenteeEmail, Role: model.RoleMentee}); err != nil {
		return nil, err
	}
	if _, err := b.UpsertUser(ctx, UserInput{Email: in.MentorEmail, Role: model.RoleMentor}); err != nil {
		b.logPartialWrite("create_request", model.TableUsers, err)
		return nil, err
	}

	row := model.Request{
		MenteeEmail: in.MenteeEmail,
		MentorEmail: in.MentorEmail,
		Status:      model.RequestStatusPending,
		Note:        nullable(in.Note),
		Interests:   nullable(in.Interests),
	}

	var out model.Request
	if err := b.execute(ctx, exec, "create_request", query.From(model.TableRequests).Insert(row).One(), &out); err != nil {
		b.logPartialWrite("create_request", model.TableRequests, err)
		return nil, err
	}

	b.logger.Info("メンタリング申請を作成しました",
		slog.String("request_id", out.ID),
		slog.String("mentor_email", out.MentorEmail),
	)
	return &out, nil
}

// FetchMentorInbox はメンター宛ての申請を表示名付きで新しい順に返す。
func (b *Bridge) FetchMentorInbox(ctx context.Context, mentorEmail string) ([]model.RequestWithNames, error) {
	if mentorEmail == "" {
		return nil, model.NewRequiredFieldError("mentor_email")
	}
	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	q := query.From(model.ViewRequestsWithNames).
		Select("*").
		Eq("mentor_email", mentorEmail).
		OrderBy("created_at", false)

	var rows []model.RequestWithNames
	if err := b.execute(ctx, exec, "fetch_mentor_inbox", q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateRequestStatus は申請のステータスを更新し、decided_at に現在時刻を設定する。
// ステータスは列挙値に含まれるかのみを検証し、遷移の妥当性は検証しない。
func (b *Bridge) UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus) (*model.Request, error) {
	if id == "" {
		return nil, model.NewRequiredFieldError("id")
	}
	if !status.Valid() {
		return nil, model.NewInvalidStatusError(string(status))
	}
	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	values := struct {
		Status    model.RequestStatus `json:"status"`
		DecidedAt string              `json:"decided_at"`
	}{
		Status:    status,
		DecidedAt: b.now().UTC().Format(decidedAtLayout),
	}

	var out model.Request
	q := query.From(model.TableRequests).Update(values).Eq("id", id).One()
	if err := b.execute(ctx, exec, "update_request_status", q, &out); err != nil {
		return nil, err
	}

	b.logger.Info("申請ステータスを更新しました",
		slog.String("request_id", id),
		slog.String("status", string(status)),
	)
	return &out, nil
}

// ListActivePairs は承認済みの申請のうち、指定した視点の側がemailに一致するものを返す。
func (b *Bridge) ListActivePairs(ctx context.Context, email string, perspective Perspective) ([]model.RequestWithNames, error) {
	if email == "" {
		return nil, model.NewRequiredFieldError("email")
	}

	var column string
	switch perspective {
	case PerspectiveMentee:
		column = "mentee_email"
	case PerspectiveMentor:
		column = "mentor_email"
	default:
		return nil, model.NewInvalidPerspectiveError(string(perspective))
	}

	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	q := query.From(model.ViewRequestsWithNames).
		Select("*").
		Eq("status", string(model.RequestStatusAccepted)).
		Eq(column, email)

	var rows []model.RequestWithNames
	if err := b.execute(ctx, exec, "list_active_pairs", q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateGoal は参照するユーザーを作成または更新した上で、目標を1件作成する。
// メンターが指定されていない場合、メンターのユーザーは作成しない。
func (b *Bridge) CreateGoal(ctx context.Context, in GoalInput) (*model.Goal, error) {
	if in.MenteeEmail == "" || in.Title == "" {
		return nil, model.NewRequiredFieldError("mentee_email", "title")
	}
	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	mentorEmail := nullable(in.MentorEmail)

	if _, err := b.UpsertUser(ctx, UserInput{Email: in.MenteeEmail, Role: model.RoleMentee}); err != nil {
		return nil, err
	}
	if mentorEmail != nil {
		if _, err := b.UpsertUser(ctx, UserInput{Email: *mentorEmail, Role: model.RoleMentor}); err != nil {
			b.logPartialWrite("create_goal", model.TableUsers, err)
			return nil, err
		}
	}

	status := in.Status
	if status == "" {
		status = model.DefaultGoalStatus
	}
	progress := 0
	if in.Progress != nil {
		progress = *in.Progress
	}

	row := model.Goal{
		MenteeEmail: in.MenteeEmail,
		MentorEmail: mentorEmail,
		Title:       in.Title,
		Notes:       nullable(in.Notes),
		Status:      status,
		Progress:    progress,
		StartDate:   nullable(in.StartDate),
		DueDate:     nullable(in.DueDate),
	}

	var out model.Goal
	if err := b.execute(ctx, exec, "create_goal", query.From(model.TableGoals).Insert(row).One(), &out); err != nil {
		b.logPartialWrite("create_goal", model.TableGoals, err)
		return nil, err
	}
	return &out, nil
}

// AdminFetchRequests は全申請を表示名付きで新しい順に返す。
// statusが空でなければそのステータスに絞り込む。
func (b *Bridge) AdminFetchRequests(ctx context.Context, status model.RequestStatus) ([]model.RequestWithNames, error) {
	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	q := query.From(model.ViewRequestsWithNames).Select("*").OrderBy("created_at", false)
	if status != "" {
		q = q.Eq("status", string(status))
	}

	var rows []model.RequestWithNames
	if err := b.execute(ctx, exec, "admin_fetch_requests", q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AdminFetchMentorsJoined はメンターユーザーとメンタープロフィールをemailで結合して返す。
// 2つの読み取りは順に実行し、両方失敗した場合はユーザー側のエラーを返す。
func (b *Bridge) AdminFetchMentorsJoined(ctx context.Context) ([]model.JoinedMentor, error) {
	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	var users []model.User
	usersErr := b.execute(ctx, exec, "admin_fetch_mentors_joined", query.From(model.TableUsers).Select("*").Eq("role", string(model.RoleMentor)), &users)
	var profiles []model.MentorProfile
	profilesErr := b.execute(ctx, exec, "admin_fetch_mentors_joined", query.From(model.TableMentors).Select("*"), &profiles)
	if usersErr != nil {
		return nil, usersErr
	}
	if profilesErr != nil {
		return nil, profilesErr
	}

	byEmail := make(map[string]model.MentorProfile, len(profiles))
	for _, p := range profiles {
		byEmail[p.UserEmail] = p
	}

	joined := make([]model.JoinedMentor, 0, len(users))
	for _, u := range users {
		p := byEmail[u.Email]
		joined = append(joined, model.JoinedMentor{
			UserEmail:    u.Email,
			Name:         deref(u.Name),
			Timezone:     deref(p.Timezone),
			Availability: strings.Join(p.Availability, listSeparator),
			Types:        strings.Join(p.Types, listSeparator),
			Skills:       strings.Join(p.Skills, listSeparator),
			Topics:       strings.Join(p.Topics, listSeparator),
			LinkedIn:     deref(p.LinkedIn),
			MeetingLink:  deref(p.MeetingLink),
			CreatedAt:    p.CreatedAt,
		})
	}
	return joined, nil
}

// AdminFetchMentees はメンティーユーザーを新しい順に返す。
func (b *Bridge) AdminFetchMentees(ctx context.Context) ([]model.MenteeSummary, error) {
	exec, err := b.handle.Get()
	if err != nil {
		return nil, err
	}

	q := query.From(model.TableUsers).
		Select("*").
		Eq("role", string(model.RoleMentee)).
		OrderBy("created_at", false)

	var users []model.User
	if err := b.execute(ctx, exec, "admin_fetch_mentees", q, &users); err != nil {
		return nil, err
	}

	out := make([]model.MenteeSummary, 0, len(users))
	for _, u := range users {
		out = append(out, model.MenteeSummary{
			Email:     u.Email,
			Name:      deref(u.Name),
			CreatedAt: u.CreatedAt,
		})
	}
	return out, nil
}

// execute はクエリを実行する。失敗した場合は操作名とテーブルを付けてエラーログを出力し、
// エラーはそのまま返す。
func (b *Bridge) execute(ctx context.Context, exec query.Executor, operation string, q query.Query, dest any) error {
	b.logger.Debug("リモート呼び出し",
		slog.String("operation", operation),
		slog.String("table", q.Table),
		slog.String("op", string(q.Op)),
	)
	if err := exec.Execute(ctx, q, dest); err != nil {
		b.logger.Error("リモート呼び出しに失敗しました",
			slog.String("operation", operation),
			slog.String("table", q.Table),
			slog.String("op", string(q.Op)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// logPartialWrite は先行するユーザー書き込みの後に後続の書き込みが失敗したことを記録する。
func (b *Bridge) logPartialWrite(operation, table string, err error) {
	b.logger.Warn("先行する書き込みは反映済みのまま後続の書き込みに失敗しました",
		slog.String("operation", operation),
		slog.String("table", table),
		slog.String("error", err.Error()),
	)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
