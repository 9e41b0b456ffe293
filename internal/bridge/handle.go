// Package bridge はメンタリングデータをリモートのテーブルAPIへ中継するファサードを提供する。
// 各操作は入力検証とデフォルト値の補完を行い、1〜2回のリモート呼び出しの結果またはエラーを
// そのまま返す。
package bridge

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/mentorbridge/internal/model"
	"github.com/hitoshi/mentorbridge/internal/query"
)

// Setting はクライアント生成に必要な設定値。
type Setting struct {
	Name  string
	Value string
}

// Factory はクライアント（query.Executor）を生成する。
type Factory func() (query.Executor, error)

// Handle は遅延初期化されるクライアントを保持する。
// 一度生成したクライアントはプロセスの生存期間中キャッシュし、破棄や再接続は行わない。
type Handle struct {
	mu       sync.Mutex
	settings []Setting
	factory  Factory
	logger   *slog.Logger
	exec     query.Executor
}

// NewHandle はHandleを生成する。この時点ではクライアントを生成しない。
func NewHandle(settings []Setting, factory Factory, logger *slog.Logger) *Handle {
	return &Handle{
		settings: settings,
		factory:  factory,
		logger:   logger,
	}
}

// Get はクライアントを返す。未生成であれば設定値を確認して生成する。
// 設定値が欠けている場合は警告を記録して model.ErrClientUnavailable を返し、
// 恒久的な失敗にはしない（次回の呼び出しで再度初期化を試みる）。
func (h *Handle) Get() (query.Executor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.exec != nil {
		return h.exec, nil
	}

	var missing []string
	for _, s := range h.settings {
		if s.Value == "" {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		h.logger.Warn("接続設定が不足しているためクライアントを初期化できません",
			slog.Any("missing", missing),
		)
		return nil, model.ErrClientUnavailable
	}

	exec, err := h.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	h.exec = exec

	h.logger.Info("client ready")
	return h.exec, nil
}
