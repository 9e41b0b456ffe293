package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/mentorbridge/internal/model"
	"github.com/hitoshi/mentorbridge/internal/query"
)

// PostgresTableExecutor はクエリをSQLに変換してPostgreSQLで実行する query.Executor。
// 結果はJSON配列として受け取り、リモートのテーブルAPIと同じ形でデコードする。
type PostgresTableExecutor struct {
	db     *sql.DB
	tables map[string]TableSchema
}

// NewPostgresTableExecutor はPostgresTableExecutorを生成する。
// schemasに含まれないテーブルへのクエリはエラーになる。
func NewPostgresTableExecutor(db *sql.DB, schemas ...TableSchema) *PostgresTableExecutor {
	tables := make(map[string]TableSchema, len(schemas))
	for _, s := range schemas {
		tables[s.Name] = s
	}
	return &PostgresTableExecutor{db: db, tables: tables}
}

// Execute はクエリを1文のSQLとして実行し、結果をdestにデコードする。
// PostgreSQLのエラーは *model.RemoteError（CodeはSQLSTATE）に変換する。
func (e *PostgresTableExecutor) Execute(ctx context.Context, q query.Query, dest any) error {
	stmt, args, err := e.buildStatement(q)
	if err != nil {
		return err
	}

	var raw []byte
	if err := e.db.QueryRowContext(ctx, stmt, args...).Scan(&raw); err != nil {
		return translateError(err)
	}
	return query.DecodeRows(raw, q.Single, dest)
}

// buildStatement はクエリを結果をJSON配列で返すSQL文に変換する。
// 識別子はすべてスキーマ定義で検証した上でクォートし、値はプレースホルダで渡す。
func (e *PostgresTableExecutor) buildStatement(q query.Query) (string, []any, error) {
	schema, ok := e.tables[q.Table]
	if !ok {
		return "", nil, &model.RemoteError{
			Status:  404,
			Code:    "42P01",
			Message: fmt.Sprintf("relation \"public.%s\" does not exist", q.Table),
		}
	}
	if q.Op != query.OpSelect && schema.ReadOnly {
		return "", nil, &model.RemoteError{
			Status:  405,
			Code:    "PGRST105",
			Message: fmt.Sprintf("cannot %s view %q", q.Op, q.Table),
		}
	}

	b := &statementBuilder{schema: schema}
	table := pq.QuoteIdentifier(schema.Name)

	switch q.Op {
	case query.OpSelect:
		cols, err := b.selectList(q.SelectedColumns())
		if err != nil {
			return "", nil, err
		}
		where, err := b.where("", q.Filters)
		if err != nil {
			return "", nil, err
		}
		order, err := b.orderBy(q.Order)
		if err != nil {
			return "", nil, err
		}
		inner := fmt.Sprintf("SELECT %s FROM %s%s%s", cols, table, where, order)
		return wrapJSON(inner, false), b.args, nil

	case query.OpInsert, query.OpUpsert:
		cols, err := b.bodyColumns(q.Body)
		if err != nil {
			return "", nil, err
		}
		colList := quoteAll(cols)
		stmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM json_populate_record(NULL::%s, %s)",
			table, colList, colList, table, b.bind(b.body))

		if q.Op == query.OpUpsert {
			conflict := q.OnConflict
			if len(conflict) == 0 {
				conflict = []string{schema.PrimaryKey}
			}
			if err := b.checkColumns(conflict); err != nil {
				return "", nil, err
			}
			stmt += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
				quoteAll(conflict), excludedAssignments(cols, conflict))
		}
		stmt += " RETURNING *"
		return wrapJSON(stmt, true), b.args, nil

	case query.OpUpdate:
		cols, err := b.bodyColumns(q.Body)
		if err != nil {
			return "", nil, err
		}
		assignments := make([]string, len(cols))
		for i, c := range cols {
			qc := pq.QuoteIdentifier(c)
			assignments[i] = fmt.Sprintf("%s = src.%s", qc, qc)
		}
		src := b.bind(b.body)
		where, err := b.where("dst.", q.Filters)
		if err != nil {
			return "", nil, err
		}
		stmt := fmt.Sprintf("UPDATE %s AS dst SET %s FROM json_populate_record(NULL::%s, %s) AS src%s RETURNING dst.*",
			table, strings.Join(assignments, ", "), table, src, where)
		return wrapJSON(stmt, true), b.args, nil
	}

	return "", nil, fmt.Errorf("unsupported operation: %q", q.Op)
}

// wrapJSON は結果行をJSON配列に集約するSQLで包む。
// 書き込み文はCTEとして実行し、RETURNING の行を集約する。
func wrapJSON(inner string, cte bool) string {
	if cte {
		return fmt.Sprintf("WITH t AS (%s) SELECT coalesce(json_agg(t), '[]'::json) FROM t", inner)
	}
	return fmt.Sprintf("SELECT coalesce(json_agg(t), '[]'::json) FROM (%s) t", inner)
}

type statementBuilder struct {
	schema TableSchema
	args   []any
	body   string
}

func (b *statementBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *statementBuilder) checkColumns(cols []string) error {
	for _, c := range cols {
		if !b.schema.hasColumn(c) {
			return unknownColumnError(b.schema.Name, c)
		}
	}
	return nil
}

func (b *statementBuilder) selectList(columns string) (string, error) {
	if columns == "*" {
		return "*", nil
	}
	var cols []string
	for _, c := range strings.Split(columns, ",") {
		cols = append(cols, strings.TrimSpace(c))
	}
	if err := b.checkColumns(cols); err != nil {
		return "", err
	}
	return quoteAll(cols), nil
}

func (b *statementBuilder) where(prefix string, filters []query.Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	conds := make([]string, len(filters))
	for i, f := range filters {
		if !b.schema.hasColumn(f.Column) {
			return "", unknownColumnError(b.schema.Name, f.Column)
		}
		conds[i] = fmt.Sprintf("%s%s = %s", prefix, pq.QuoteIdentifier(f.Column), b.bind(f.Value))
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

func (b *statementBuilder) orderBy(o *query.Order) (string, error) {
	if o == nil {
		return "", nil
	}
	if !b.schema.hasColumn(o.Column) {
		return "", unknownColumnError(b.schema.Name, o.Column)
	}
	dir := "DESC"
	if o.Ascending {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", pq.QuoteIdentifier(o.Column), dir), nil
}

// bodyColumns はペイロードのカラム名を検証して名前順に返し、ペイロードのJSONを保持する。
// ペイロードに含まれないカラムはテーブルのデフォルト値に任せる。
func (b *statementBuilder) bodyColumns(body any) ([]string, error) {
	values, err := query.BodyColumns(body)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty body for table %q", b.schema.Name)
	}

	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := b.checkColumns(cols); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	b.body = string(raw)
	return cols, nil
}

// excludedAssignments は競合時に上書きするカラムの代入句を返す。
// 上書き対象がない場合も RETURNING で行を返すため、競合キー自身を代入する。
func excludedAssignments(cols, conflict []string) string {
	var set []string
	for _, c := range cols {
		if contains(conflict, c) {
			continue
		}
		qc := pq.QuoteIdentifier(c)
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", qc, qc))
	}
	if len(set) == 0 {
		qc := pq.QuoteIdentifier(conflict[0])
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", qc, qc))
	}
	return strings.Join(set, ", ")
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func unknownColumnError(table, column string) *model.RemoteError {
	return &model.RemoteError{
		Status:  400,
		Code:    "42703",
		Message: fmt.Sprintf("column %s.%s does not exist", table, column),
	}
}

// translateError はPostgreSQLのエラーを RemoteError に変換する。
// それ以外のエラー（接続断やコンテキストのキャンセルなど）はラップして返す。
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &model.RemoteError{
			Code:    string(pqErr.Code),
			Message: pqErr.Message,
			Details: pqErr.Detail,
			Hint:    pqErr.Hint,
		}
	}
	return fmt.Errorf("failed to execute query: %w", err)
}

// compile-time interface check
var _ query.Executor = (*PostgresTableExecutor)(nil)
