// Package memtable はリモートのテーブルAPIをメモリ上で再現する query.Executor を提供する。
// テストとローカル確認用のバックエンドとして使用する。
package memtable

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/mentorbridge/internal/model"
	"github.com/hitoshi/mentorbridge/internal/query"
)

// timestampLayout は created_at の書式。固定長のため文字列比較で時刻順に並ぶ。
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Row はテーブルの1行。値はJSONデコード後の型（string, float64, bool, nil, []any）を持つ。
type Row map[string]any

// TableSpec はテーブルの定義。
type TableSpec struct {
	Name       string
	PrimaryKey string
	// GeneratedID がtrueの場合、主キー未指定の挿入時にUUIDを採番する。
	GeneratedID bool
}

// ViewFunc はビューの行を生成する。Storeのロック内で呼ばれる。
type ViewFunc func(s *Store) []Row

type table struct {
	spec TableSpec
	rows []Row
}

// Store はメモリ上のテーブル群。並行呼び出しに対して安全。
type Store struct {
	mu       sync.Mutex
	tables   map[string]*table
	views    map[string]ViewFunc
	failures map[string]error
	calls    []query.Query
	now      func() time.Time
}

// New は指定したテーブル定義で空のStoreを生成する。
func New(specs ...TableSpec) *Store {
	s := &Store{
		tables:   make(map[string]*table, len(specs)),
		views:    make(map[string]ViewFunc),
		failures: make(map[string]error),
		now:      time.Now,
	}
	for _, spec := range specs {
		s.tables[spec.Name] = &table{spec: spec}
	}
	return s
}

// AddView はビューを登録する。
func (s *Store) AddView(name string, fn ViewFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[name] = fn
}

// SetClock は created_at の採番に使う時計を差し替える。
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext は指定テーブルへの次の1回の呼び出しを err で失敗させる。
func (s *Store) FailNext(tableName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[tableName] = err
}

// Calls はこれまでに実行されたクエリを実行順に返す。
func (s *Store) Calls() []query.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Rows は指定テーブルの全行のコピーを返す。
func (s *Store) Rows(tableName string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = cloneRow(r)
	}
	return out
}

// Execute はクエリをメモリ上のテーブルに適用し、結果をdestにデコードする。
func (s *Store) Execute(ctx context.Context, q query.Query, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := s.apply(q)
	if err != nil {
		return err
	}
	return query.DecodeRows(raw, q.Single, dest)
}

func (s *Store) apply(q query.Query) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, q)

	if err, ok := s.failures[q.Table]; ok {
		delete(s.failures, q.Table)
		return nil, err
	}

	var (
		rows []Row
		err  error
	)
	if view, ok := s.views[q.Table]; ok {
		if q.Op != query.OpSelect {
			return nil, &model.RemoteError{Status: 405, Code: "PGRST105", Message: fmt.Sprintf("cannot %s view %q", q.Op, q.Table)}
		}
		rows = filterRows(view(s), q.Filters)
	} else {
		t, ok := s.tables[q.Table]
		if !ok {
			return nil, &model.RemoteError{
				Status:  404,
				Code:    "42P01",
				Message: fmt.Sprintf("relation \"public.%s\" does not exist", q.Table),
			}
		}
		rows, err = s.applyTable(t, q)
		if err != nil {
			return nil, err
		}
	}

	if q.Order != nil {
		sortRows(rows, *q.Order)
	}
	rows = projectRows(rows, q.SelectedColumns())

	if rows == nil {
		rows = []Row{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}
	return raw, nil
}

func (s *Store) applyTable(t *table, q query.Query) ([]Row, error) {
	switch q.Op {
	case query.OpSelect:
		return filterRows(t.rows, q.Filters), nil

	case query.OpInsert:
		row, err := decodeBody(q.Body)
		if err != nil {
			return nil, err
		}
		s.fillDefaults(t, row)
		if pk := t.spec.PrimaryKey; pk != "" {
			if existing := findRow(t.rows, []string{pk}, row); existing != nil {
				return nil, duplicateKeyError(t.spec.Name, pk, row[pk])
			}
		}
		t.rows = append(t.rows, row)
		return []Row{cloneRow(row)}, nil

	case query.OpUpsert:
		row, err := decodeBody(q.Body)
		if err != nil {
			return nil, err
		}
		conflict := q.OnConflict
		if len(conflict) == 0 && t.spec.PrimaryKey != "" {
			conflict = []string{t.spec.PrimaryKey}
		}
		if existing := findRow(t.rows, conflict, row); existing != nil {
			for k, v := range row {
				existing[k] = v
			}
			return []Row{cloneRow(existing)}, nil
		}
		s.fillDefaults(t, row)
		t.rows = append(t.rows, row)
		return []Row{cloneRow(row)}, nil

	case query.OpUpdate:
		values, err := decodeBody(q.Body)
		if err != nil {
			return nil, err
		}
		var updated []Row
		for _, r := range t.rows {
			if !matches(r, q.Filters) {
				continue
			}
			for k, v := range values {
				r[k] = v
			}
			updated = append(updated, cloneRow(r))
		}
		return updated, nil
	}
	return nil, fmt.Errorf("unsupported operation: %q", q.Op)
}

// fillDefaults はリモート側で採番される主キーと created_at を補完する。
func (s *Store) fillDefaults(t *table, row Row) {
	if t.spec.GeneratedID && t.spec.PrimaryKey != "" {
		if v, ok := row[t.spec.PrimaryKey]; !ok || v == nil || v == "" {
			row[t.spec.PrimaryKey] = uuid.NewString()
		}
	}
	if v, ok := row["created_at"]; !ok || v == nil || v == "" {
		row["created_at"] = s.now().UTC().Format(timestampLayout)
	}
}

func decodeBody(body any) (Row, error) {
	cols, err := query.BodyColumns(body)
	if err != nil {
		return nil, err
	}
	row := make(Row, len(cols))
	for k, raw := range cols {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode column %q: %w", k, err)
		}
		row[k] = v
	}
	return row, nil
}

func duplicateKeyError(tableName, column string, value any) *model.RemoteError {
	return &model.RemoteError{
		Status:  409,
		Code:    "23505",
		Message: fmt.Sprintf("duplicate key value violates unique constraint \"%s_pkey\"", tableName),
		Details: fmt.Sprintf("Key (%s)=(%s) already exists.", column, valueString(value)),
	}
}

func findRow(rows []Row, columns []string, key Row) Row {
	if len(columns) == 0 {
		return nil
	}
	for _, r := range rows {
		match := true
		for _, c := range columns {
			if r[c] == nil || key[c] == nil || valueString(r[c]) != valueString(key[c]) {
				match = false
				break
			}
		}
		if match {
			return r
		}
	}
	return nil
}

func filterRows(rows []Row, filters []query.Filter) []Row {
	var out []Row
	for _, r := range rows {
		if matches(r, filters) {
			out = append(out, cloneRow(r))
		}
	}
	return out
}

// matches は全フィルタに一致するかを返す。NULLはどの値とも一致しない。
func matches(r Row, filters []query.Filter) bool {
	for _, f := range filters {
		v, ok := r[f.Column]
		if !ok || v == nil || valueString(v) != f.Value {
			return false
		}
	}
	return true
}

// sortRows は指定カラムで安定ソートする。NULLは昇順で末尾、降順で先頭に置く（PostgreSQLと同じ）。
func sortRows(rows []Row, order query.Order) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		av, bv := a[order.Column], b[order.Column]
		var c int
		switch {
		case av == nil && bv == nil:
			c = 0
		case av == nil:
			c = 1
		case bv == nil:
			c = -1
		default:
			c = compareValues(av, bv)
		}
		if !order.Ascending {
			c = -c
		}
		return c
	})
}

func compareValues(a, b any) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(valueString(a), valueString(b))
}

func projectRows(rows []Row, columns string) []Row {
	if columns == "*" {
		return rows
	}
	names := strings.Split(columns, ",")
	out := make([]Row, len(rows))
	for i, r := range rows {
		p := make(Row, len(names))
		for _, n := range names {
			n = strings.TrimSpace(n)
			p[n] = r[n]
		}
		out[i] = p
	}
	return out
}

func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		raw, _ := json.Marshal(x)
		return string(raw)
	}
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		if list, ok := v.([]any); ok {
			v = slices.Clone(list)
		}
		out[k] = v
	}
	return out
}

// compile-time interface check
var _ query.Executor = (*Store)(nil)
