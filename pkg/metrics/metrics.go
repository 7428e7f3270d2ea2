// Package metrics は動画生成ワークフローの観測値を Prometheus に出力します。
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shouni/video-task-kit/pkg/domain"
)

const defaultNamespace = "videobot"

// Metrics は generator.Recorder と bot.CommandRecorder を実装します。
// nil レシーバでも安全に呼び出せます。
type Metrics struct {
	submissions  *prometheus.CounterVec
	pollAttempts *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	commands     *prometheus.CounterVec
}

// New はメトリクスを reg に登録します。reg が nil ならデフォルトのレジストリを使います。
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Video generation task submissions by wire mode and result.",
		}, []string{"mode", "result"}),
		pollAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_attempts_total",
			Help:      "Status queries by classified result.",
		}, []string{"result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_outcomes_total",
			Help:      "Finished polling sessions by final state.",
		}, []string{"outcome"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Wall-clock time from the first status query to the final state.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Handled chat commands by command and error kind.",
		}, []string{"command", "result"}),
	}

	m.submissions = register(reg, m.submissions)
	m.pollAttempts = register(reg, m.pollAttempts)
	m.outcomes = register(reg, m.outcomes)
	m.pollDuration = register(reg, m.pollDuration)
	m.commands = register(reg, m.commands)
	if m.submissions == nil || m.pollAttempts == nil || m.outcomes == nil || m.pollDuration == nil || m.commands == nil {
		return nil, fmt.Errorf("register video metrics: conflicting collector")
	}
	return m, nil
}

// register は既に同じコレクタが登録済みならそれを再利用します。
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		var zero C
		return zero
	}
	return c
}

// ObserveSubmission はタスク作成 1 回分を記録します。
func (m *Metrics) ObserveSubmission(mode string, err error) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(mode, resultLabel(err)).Inc()
}

// ObservePollAttempt はステータス照会 1 回分を記録します。
func (m *Metrics) ObservePollAttempt(result string) {
	if m == nil {
		return
	}
	m.pollAttempts.WithLabelValues(result).Inc()
}

// ObserveOutcome はポーリングセッションの終了を記録します。
func (m *Metrics) ObserveOutcome(state domain.PollState, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(state.String()).Inc()
	m.pollDuration.WithLabelValues(state.String()).Observe(elapsed.Seconds())
}

// ObserveCommand はコマンド 1 回分の処理結果を記録します。
func (m *Metrics) ObserveCommand(command string, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.KindOf(err).String()
}
