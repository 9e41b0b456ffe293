// Package repository はPostgreSQLに直接接続するテーブル実行器を提供する。
// リモートのテーブルAPIと同じクエリ表現を、許可されたテーブルとカラムに限定してSQLに変換する。
package repository

import "github.com/hitoshi/mentorbridge/internal/model"

// TableSchema はクエリで参照を許可するテーブル（またはビュー）の定義。
type TableSchema struct {
	Name       string
	PrimaryKey string
	Columns    []string
	ReadOnly   bool // ビューなど書き込み不可のリレーション
}

func (s TableSchema) hasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MentorshipSchema はメンタリングのスキーマ定義を返す。
// database/migrations のテーブル定義と一致させること。
func MentorshipSchema() []TableSchema {
	return []TableSchema{
		{
			Name:       model.TableUsers,
			PrimaryKey: "email",
			Columns:    []string{"email", "name", "role", "created_at"},
		},
		{
			Name:       model.TableMentors,
			PrimaryKey: "user_email",
			Columns: []string{
				"user_email", "timezone", "availability", "types", "skills", "topics",
				"bio", "meeting_link", "linkedin", "created_at",
			},
		},
		{
			Name:       model.TableRequests,
			PrimaryKey: "id",
			Columns: []string{
				"id", "mentee_email", "mentor_email", "status", "note", "interests",
				"created_at", "decided_at",
			},
		},
		{
			Name:       model.TableGoals,
			PrimaryKey: "id",
			Columns: []string{
				"id", "mentee_email", "mentor_email", "title", "notes", "status", "progress",
				"start_date", "due_date", "created_at",
			},
		},
		{
			Name: model.ViewRequestsWithNames,
			Columns: []string{
				"id", "mentee_email", "mentor_email", "status", "note", "interests",
				"created_at", "decided_at", "mentee_name", "mentor_name",
			},
			ReadOnly: true,
		},
	}
}
