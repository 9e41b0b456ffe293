// Package query はリモートのテーブルAPIに対する宣言的なクエリ表現を提供する。
// クエリの組み立てと実行を分離し、実行側（REST、SQL、インメモリ）を差し替え可能にする。
package query

import (
	"context"
	"slices"
)

// Operation はテーブルに対する操作の種類。
type Operation string

const (
	OpSelect Operation = "select"
	OpInsert Operation = "insert"
	OpUpsert Operation = "upsert"
	OpUpdate Operation = "update"
)

// Filter は等価条件 column = value を表す。
type Filter struct {
	Column string
	Value  string
}

// Order は並び順の指定。
type Order struct {
	Column    string
	Ascending bool
}

// Query はテーブルに対する1回のリモート呼び出しを表す。
// 各メソッドは値のコピーを返すため、途中の状態を使い回しても互いに影響しない。
type Query struct {
	Table      string
	Op         Operation
	Columns    string   // 取得カラム。空の場合は "*"
	Body       any      // insert/upsert/update のペイロード
	OnConflict []string // upsert の競合判定カラム。空の場合は主キー
	Filters    []Filter
	Order      *Order
	Single     bool // 結果がちょうど1行であることを要求する
}

// From は指定テーブルに対するクエリを開始する。
func From(table string) Query {
	return Query{Table: table, Op: OpSelect}
}

// Select は取得カラムを指定する。
func (q Query) Select(columns string) Query {
	q.Op = OpSelect
	q.Columns = columns
	return q
}

// Insert は1行の挿入を指定する。
func (q Query) Insert(row any) Query {
	q.Op = OpInsert
	q.Body = row
	return q
}

// Upsert は1行の挿入または更新を指定する。
// onConflictを省略した場合は主キーで競合を判定する。
func (q Query) Upsert(row any, onConflict ...string) Query {
	q.Op = OpUpsert
	q.Body = row
	q.OnConflict = slices.Clone(onConflict)
	return q
}

// Update はフィルタに一致する行の部分更新を指定する。
func (q Query) Update(values any) Query {
	q.Op = OpUpdate
	q.Body = values
	return q
}

// Eq は等価フィルタを追加する。
func (q Query) Eq(column, value string) Query {
	q.Filters = append(slices.Clone(q.Filters), Filter{Column: column, Value: value})
	return q
}

// OrderBy は並び順を指定する。
func (q Query) OrderBy(column string, ascending bool) Query {
	q.Order = &Order{Column: column, Ascending: ascending}
	return q
}

// One は結果がちょうど1行であることを要求する。
// 0行または複数行の場合、実行側はリモートエラーを返す。
func (q Query) One() Query {
	q.Single = true
	return q
}

// SelectedColumns は取得カラムを返す。未指定の場合は "*"。
func (q Query) SelectedColumns() string {
	if q.Columns == "" {
		return "*"
	}
	return q.Columns
}

// Executor はクエリをリモートに送信し、結果をdestにデコードする。
// Single指定時はdestに1行分の構造体、それ以外はスライスを渡す。
// リモートが失敗を返した場合は *model.RemoteError を返す。
type Executor interface {
	Execute(ctx context.Context, q Query, dest any) error
}
