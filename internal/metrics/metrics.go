// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder は認証サブシステムのメトリクス収集インターフェース。
type Recorder interface {
	RecordLoginSuccess()
	RecordCallbackFailure(reason string)
	RecordSessionValidation(result string)
	RecordSessionsCleaned(count int64)
	RecordTokenRefresh(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess       prometheus.Counter
	callbackFailures   *prometheus.CounterVec
	sessionValidations *prometheus.CounterVec
	sessionsCleaned    prometheus.Counter
	tokenRefreshes     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playpals_login_success_total",
			Help: "OAuthログイン成功の合計数",
		}),
		callbackFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playpals_oauth_callback_failures_total",
			Help: "OAuthコールバック失敗の理由タグ別合計数",
		}, []string{"reason"}),
		sessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playpals_session_validations_total",
			Help: "セッション検証の結果別合計数",
		}, []string{"result"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playpals_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playpals_token_refresh_total",
			Help: "Spotifyアクセストークンのリフレッシュの結果別合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.callbackFailures,
		c.sessionValidations,
		c.sessionsCleaned,
		c.tokenRefreshes,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordCallbackFailure はコールバック失敗を理由タグ付きで記録する。
func (c *Collector) RecordCallbackFailure(reason string) {
	c.callbackFailures.WithLabelValues(reason).Inc()
}

// RecordSessionValidation はセッション検証の結果（valid/invalid/error）を記録する。
func (c *Collector) RecordSessionValidation(result string) {
	c.sessionValidations.WithLabelValues(result).Inc()
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(result string) {
	c.tokenRefreshes.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopRecorder は何も記録しないRecorder。テストおよび未設定時に使用する。
type NopRecorder struct{}

func (NopRecorder) RecordLoginSuccess()            {}
func (NopRecorder) RecordCallbackFailure(string)   {}
func (NopRecorder) RecordSessionValidation(string) {}
func (NopRecorder) RecordSessionsCleaned(int64)    {}
func (NopRecorder) RecordTokenRefresh(string)      {}

// compile-time interface checks
var _ Recorder = (*Collector)(nil)
var _ Recorder = NopRecorder{}
