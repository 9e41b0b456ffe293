package bridge

import "github.com/hitoshi/mentorbridge/internal/model"

// Perspective はペア一覧を取得する側の視点。
type Perspective string

const (
	PerspectiveMentee Perspective = "mentee"
	PerspectiveMentor Perspective = "mentor"
)

// UserInput は UpsertUser の入力。Roleが空の場合は mentee とする。
type UserInput struct {
	Email string     `json:"email"`
	Name  *string    `json:"name"`
	Role  model.Role `json:"role"`
}

// MentorProfileInput は UpsertMentorProfile の入力。UserEmail以外は任意。
type MentorProfileInput struct {
	UserEmail    string   `json:"user_email"`
	Timezone     *string  `json:"timezone"`
	Availability []string `json:"availability"`
	Types        []string `json:"types"`
	Skills       []string `json:"skills"`
	Topics       []string `json:"topics"`
	Bio          *string  `json:"bio"`
	MeetingLink  *string  `json:"meeting_link"`
	LinkedIn     *string  `json:"linkedin"`
}

// RequestInput は CreateRequest の入力。
type RequestInput struct {
	MenteeEmail string  `json:"mentee_email"`
	MentorEmail string  `json:"mentor_email"`
	Note        *string `json:"note"`
	Interests   *string `json:"interests"`
}

// GoalInput は CreateGoal の入力。
// Statusが空の場合は "open"、Progressがnilの場合は0とする。
type GoalInput struct {
	MenteeEmail string  `json:"mentee_email"`
	MentorEmail *string `json:"mentor_email"`
	Title       string  `json:"title"`
	Notes       *string `json:"notes"`
	Status      string  `json:"status"`
	Progress    *int    `json:"progress"`
	StartDate   *string `json:"start_date"`
	DueDate     *string `json:"due_date"`
}

// nullable は未指定または空文字列をNULLとして扱う。
func nullable(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
