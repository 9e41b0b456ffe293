package memtable

import "github.com/hitoshi/mentorbridge/internal/model"

// NewMentorshipStore はメンタリングのスキーマ（users, mentors, requests, goals と
// v_requests_with_names ビュー）を持つStoreを生成する。
func NewMentorshipStore() *Store {
	s := New(
		TableSpec{Name: model.TableUsers, PrimaryKey: "email"},
		TableSpec{Name: model.TableMentors, PrimaryKey: "user_email"},
		TableSpec{Name: model.TableRequests, PrimaryKey: "id", GeneratedID: true},
		TableSpec{Name: model.TableGoals, PrimaryKey: "id", GeneratedID: true},
	)
	s.AddView(model.ViewRequestsWithNames, requestsWithNames)
	return s
}

// requestsWithNames は申請に双方のユーザー名を結合する。
func requestsWithNames(s *Store) []Row {
	names := make(map[string]any)
	for _, u := range s.tables[model.TableUsers].rows {
		if email, ok := u["email"].(string); ok {
			names[email] = u["name"]
		}
	}

	reqs := s.tables[model.TableRequests].rows
	out := make([]Row, 0, len(reqs))
	for _, r := range reqs {
		row := cloneRow(r)
		row["mentee_name"] = names[valueString(r["mentee_email"])]
		row["mentor_name"] = names[valueString(r["mentor_email"])]
		out = append(out, row)
	}
	return out
}
