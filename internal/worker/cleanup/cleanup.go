// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// expires_atを過ぎたセッション行を定期バッチで物理削除する。
// 無効化済み（is_active = FALSE）だが期限内の行は監査のために残す。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playpals/playpals/internal/metrics"
)

// SessionCleaner は期限切れセッションの削除インターフェース。
// session.Storeの部分集合として定義する。
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// Job は期限切れセッションの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	sessions SessionCleaner
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewJob は新しいJobを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewJob(sessions SessionCleaner, logger *slog.Logger, recorder metrics.Recorder) *Job {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Job{
		sessions: sessions,
		logger:   logger,
		metrics:  recorder,
	}
}

// Run は期限切れセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordSessionsCleaned(deletedCount)

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
