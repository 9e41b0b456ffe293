package model

// Role はユーザーの役割を表す。
type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

// User は users テーブルの行を表す。emailが識別子となる。
type User struct {
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	Role      Role    `json:"role"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// MenteeSummary は管理画面向けのメンティー一覧の1行。
type MenteeSummary struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}
