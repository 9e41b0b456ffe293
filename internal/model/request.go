package model

// RequestStatus はメンタリング申請の状態を表す。
// 遷移の制約はなく、任意の値から任意の値へ更新できる。
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDeclined RequestStatus = "declined"
)

// Valid はステータスが列挙値のいずれかであるかを返す。
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusDeclined:
		return true
	}
	return false
}

// Request は requests テーブルの行を表す。idはリモートで採番される。
type Request struct {
	ID          string        `json:"id,omitempty"`
	MenteeEmail string        `json:"mentee_email"`
	MentorEmail string        `json:"mentor_email"`
	Status      RequestStatus `json:"status"`
	Note        *string       `json:"note"`
	Interests   *string       `json:"interests"`
	CreatedAt   string        `json:"created_at,omitempty"`
	DecidedAt   *string       `json:"decided_at,omitempty"`
}

// RequestWithNames は v_requests_with_names ビューの行を表す。
// 申請に双方の表示名を結合した読み取り専用の射影。
type RequestWithNames struct {
	Request
	MenteeName *string `json:"mentee_name"`
	MentorName *string `json:"mentor_name"`
}
