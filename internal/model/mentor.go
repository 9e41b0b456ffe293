package model

// MentorProfile は mentors テーブルの行を表す。user_emailで users に紐づく。
type MentorProfile struct {
	UserEmail    string   `json:"user_email"`
	Timezone     *string  `json:"timezone"`
	Availability []string `json:"availability"`
	Types        []string `json:"types"`
	Skills       []string `json:"skills"`
	Topics       []string `json:"topics"`
	Bio          *string  `json:"bio"`
	MeetingLink  *string  `json:"meeting_link"`
	LinkedIn     *string  `json:"linkedin"`
	CreatedAt    string   `json:"created_at,omitempty"`
}

// JoinedMentor はメンターユーザーとプロフィールを結合した管理画面向けの1行。
// リスト項目は "|" 区切りの文字列に平坦化され、欠落項目は空文字列になる。
type JoinedMentor struct {
	UserEmail    string `json:"user_email"`
	Name         string `json:"name"`
	Timezone     string `json:"timezone"`
	Availability string `json:"availability"`
	Types        string `json:"types"`
	Skills       string `json:"skills"`
	Topics       string `json:"topics"`
	LinkedIn     string `json:"linkedin"`
	MeetingLink  string `json:"meeting_link"`
	CreatedAt    string `json:"created_at"`
}
