package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/video-task-kit/pkg/domain"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("", reg)
	require.NoError(t, err)

	m.ObserveSubmission("json", nil)
	m.ObserveSubmission("json", domain.NewSubmissionError("unexpected status", 500, "", nil))
	m.ObservePollAttempt("pending")
	m.ObservePollAttempt("pending")
	m.ObservePollAttempt("terminal")
	m.ObserveOutcome(domain.PollSucceeded, 40*time.Second)
	m.ObserveCommand("text-to-video", domain.NewUserInputError("empty prompt"))
	m.ObserveCommand("text-to-video", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("json", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("json", "submission")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pollAttempts.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("text-to-video", "user_input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("text-to-video", "unknown")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.pollDuration))
}

func TestMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New("videobot", reg)
	require.NoError(t, err)
	second, err := New("videobot", reg)
	require.NoError(t, err)

	second.ObservePollAttempt("transient")
	assert.Equal(t, 1.0, testutil.ToFloat64(first.pollAttempts.WithLabelValues("transient")), "既存のコレクタを共有する")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSubmission("json", nil)
		m.ObservePollAttempt("pending")
		m.ObserveOutcome(domain.PollFailed, time.Second)
		m.ObserveCommand("image-to-video", nil)
	})
}
