package query

import (
	"context"
	"time"
)

// Observer はクエリ実行の結果を受け取る。メトリクス収集に使用する。
type Observer interface {
	ObserveQuery(q Query, duration time.Duration, err error)
}

type observedExecutor struct {
	next     Executor
	observer Observer
}

// Observed は実行ごとに所要時間と結果をobserverへ通知するExecutorを返す。
// observerがnilの場合はnextをそのまま返す。
func Observed(next Executor, observer Observer) Executor {
	if observer == nil {
		return next
	}
	return &observedExecutor{next: next, observer: observer}
}

func (e *observedExecutor) Execute(ctx context.Context, q Query, dest any) error {
	start := time.Now()
	err := e.next.Execute(ctx, q, dest)
	e.observer.ObserveQuery(q, time.Since(start), err)
	return err
}
