package query

import (
	"encoding/json"
	"fmt"

	"github.com/hitoshi/mentorbridge/internal/model"
)

// singleRowErrorCode は Single 指定で行数が1でない場合のエラーコード。
// PostgRESTと同じコードを使い、実行側によらず同じ扱いにできるようにする。
const singleRowErrorCode = "PGRST116"

// NewSingleRowError は Single 指定で行数が1でない場合のリモートエラーを生成する。
func NewSingleRowError(rows int) *model.RemoteError {
	return &model.RemoteError{
		Status:  406,
		Code:    singleRowErrorCode,
		Message: "JSON object requested, multiple (or no) rows returned",
		Details: fmt.Sprintf("The result contains %d rows", rows),
	}
}

// DecodeRows はJSON配列の結果をdestにデコードする。
// singleがtrueの場合は行数がちょうど1であることを検証し、その1行をデコードする。
func DecodeRows(raw []byte, single bool, dest any) error {
	if !single {
		if dest == nil {
			return nil
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("failed to decode rows: %w", err)
		}
		return nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("failed to decode rows: %w", err)
	}
	if len(rows) != 1 {
		return NewSingleRowError(len(rows))
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return fmt.Errorf("failed to decode row: %w", err)
	}
	return nil
}

// BodyColumns はペイロードをJSONオブジェクトとして解釈し、カラム名と値の対応を返す。
// SQL実行やインメモリ実行でペイロードを列単位に扱うために使用する。
func BodyColumns(body any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	var cols map[string]json.RawMessage
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	return cols, nil
}
