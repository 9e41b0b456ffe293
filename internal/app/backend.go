package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/mentorbridge/internal/bridge"
	"github.com/hitoshi/mentorbridge/internal/config"
	"github.com/hitoshi/mentorbridge/internal/database"
	"github.com/hitoshi/mentorbridge/internal/memtable"
	"github.com/hitoshi/mentorbridge/internal/postgrest"
	"github.com/hitoshi/mentorbridge/internal/query"
	"github.com/hitoshi/mentorbridge/internal/repository"
)

// executorFactory は BRIDGE_BACKEND に応じたテーブル実行器を生成する。
// 生成した実行器はすべて observer によるメトリクス記録でラップする。
type executorFactory struct {
	cfg      *config.Config
	logger   *slog.Logger
	observer query.Observer

	mu sync.Mutex
	db *sql.DB
}

func newExecutorFactory(cfg *config.Config, logger *slog.Logger, observer query.Observer) *executorFactory {
	return &executorFactory{cfg: cfg, logger: logger, observer: observer}
}

// settings はバックエンドの生成に必要な設定値を返す。
func (f *executorFactory) settings() []bridge.Setting {
	switch f.cfg.Backend {
	case config.BackendPostgres:
		return []bridge.Setting{
			{Name: "DATABASE_URL", Value: f.cfg.DatabaseURL},
		}
	case config.BackendMemory:
		return nil
	default:
		return []bridge.Setting{
			{Name: "SUPABASE_URL", Value: f.cfg.SupabaseURL},
			{Name: "SUPABASE_ANON_KEY", Value: f.cfg.SupabaseAnonKey},
		}
	}
}

// create はバックエンドの実行器を生成する。bridge.Handle から1度だけ呼ばれる。
func (f *executorFactory) create() (query.Executor, error) {
	var exec query.Executor

	switch f.cfg.Backend {
	case config.BackendPostgres:
		db, err := database.Open(f.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Ping(context.Background(), db, f.cfg.RemoteTimeout); err != nil {
			db.Close()
			return nil, err
		}
		f.mu.Lock()
		f.db = db
		f.mu.Unlock()
		f.logger.Info("database connection established")
		exec = repository.NewPostgresTableExecutor(db, repository.MentorshipSchema()...)
	case config.BackendMemory:
		exec = memtable.NewMentorshipStore()
	default:
		httpClient := &http.Client{Timeout: f.cfg.RemoteTimeout}
		exec = postgrest.NewClient(httpClient, f.logger, f.cfg.SupabaseURL, f.cfg.SupabaseAnonKey)
	}

	return query.Observed(exec, f.observer), nil
}

// Close は生成済みのDB接続を閉じる。
func (f *executorFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}
