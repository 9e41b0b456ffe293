package model

// リモートのテーブルおよびビュー名。
const (
	TableUsers            = "users"
	TableMentors          = "mentors"
	TableRequests         = "requests"
	TableGoals            = "goals"
	ViewRequestsWithNames = "v_requests_with_names"
)
