package model

// DefaultGoalStatus は目標作成時にステータス未指定の場合の値。
const DefaultGoalStatus = "open"

// Goal は goals テーブルの行を表す。このモジュールからは作成のみ行う。
type Goal struct {
	ID          string  `json:"id,omitempty"`
	MenteeEmail string  `json:"mentee_email"`
	MentorEmail *string `json:"mentor_email"`
	Title       string  `json:"title"`
	Notes       *string `json:"notes"`
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	StartDate   *string `json:"start_date"`
	DueDate     *string `json:"due_date"`
	CreatedAt   string  `json:"created_at,omitempty"`
}
