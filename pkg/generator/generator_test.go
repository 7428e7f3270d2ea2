package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/video-task-kit/pkg/domain"
	"github.com/shouni/video-task-kit/pkg/request"
)

func newTestGenerator(t *testing.T, client *mockClient, rec *mockRecorder) *VideoGenerator {
	t.Helper()
	b, err := request.NewBuilder(request.Options{
		Model:             "Wan2.1-T2V-1.3B",
		NumInferenceSteps: 50,
		NumFrames:         81,
	})
	require.NoError(t, err)
	p := newTestPoller(t, client, 30*time.Second, 10*time.Second, &fakeSleeper{}, rec)
	g, err := NewVideoGenerator(b, client, p, rec, domain.WireModeJSON)
	require.NoError(t, err)
	return g
}

func TestNewVideoGenerator_Validation(t *testing.T) {
	b, err := request.NewBuilder(request.Options{Model: "m", NumInferenceSteps: 1, NumFrames: 1})
	require.NoError(t, err)
	client := &mockClient{}
	p, err := NewPoller(client, time.Second, time.Second)
	require.NoError(t, err)

	_, err = NewVideoGenerator(nil, client, p, nil, domain.WireModeJSON)
	assert.Error(t, err)
	_, err = NewVideoGenerator(b, nil, p, nil, domain.WireModeJSON)
	assert.Error(t, err)
	_, err = NewVideoGenerator(b, client, nil, nil, domain.WireModeJSON)
	assert.Error(t, err)
	g, err := NewVideoGenerator(b, client, p, nil, domain.WireModeJSON)
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestVideoGenerator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: 作成して成功まで待つ", func(t *testing.T) {
		client := &mockClient{
			credential: true,
			handle:     domain.TaskHandle{TaskID: "abc"},
			replies: []statusReply{
				pending(),
				{status: domain.TaskStatus{State: domain.TaskSucceeded, ResultURL: "https://x/v.mp4"}},
			},
		}
		rec := &mockRecorder{}
		g := newTestGenerator(t, client, rec)

		var notified []string
		url, err := g.Generate(ctx, domain.TextToVideo, "a cat", nil, func(ctx context.Context, h domain.TaskHandle) {
			notified = append(notified, h.TaskID)
		})

		require.NoError(t, err)
		assert.Equal(t, "https://x/v.mp4", url)
		assert.Equal(t, []string{"abc"}, notified)
		assert.Equal(t, 1, client.submitCalls)
		assert.Equal(t, 2, client.queries)
		assert.Equal(t, []error{nil}, rec.submissions)
		assert.Equal(t, []domain.PollState{domain.PollSucceeded}, rec.outcomes)
	})

	t.Run("APIキーが無ければ送信しない", func(t *testing.T) {
		client := &mockClient{replies: []statusReply{pending()}}
		g := newTestGenerator(t, client, &mockRecorder{})

		_, err := g.Generate(ctx, domain.TextToVideo, "a cat", nil, nil)

		assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
		assert.Zero(t, client.submitCalls)
		assert.Zero(t, client.queries)
	})

	t.Run("空のプロンプトは UserInputError で送信しない", func(t *testing.T) {
		client := &mockClient{credential: true, replies: []statusReply{pending()}}
		g := newTestGenerator(t, client, &mockRecorder{})

		_, err := g.Generate(ctx, domain.TextToVideo, "   ", nil, nil)

		assert.Equal(t, domain.KindUserInput, domain.KindOf(err))
		assert.Zero(t, client.submitCalls)
	})

	t.Run("画像なしの image-to-video は送信しない", func(t *testing.T) {
		client := &mockClient{credential: true, replies: []statusReply{pending()}}
		g := newTestGenerator(t, client, &mockRecorder{})

		err := g.Validate(domain.ImageToVideo, "move", nil)
		assert.Equal(t, domain.KindUserInput, domain.KindOf(err))
		assert.Zero(t, client.submitCalls)
	})

	t.Run("作成に失敗したらポーリングしない", func(t *testing.T) {
		client := &mockClient{
			credential: true,
			submitErr:  domain.NewSubmissionError("unexpected status", 401, `{"error":"unauthorized"}`, nil),
			replies:    []statusReply{pending()},
		}
		rec := &mockRecorder{}
		g := newTestGenerator(t, client, rec)

		called := false
		_, err := g.Generate(ctx, domain.TextToVideo, "a cat", nil, func(context.Context, domain.TaskHandle) { called = true })

		var de *domain.Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.KindSubmission, de.Kind)
		assert.Equal(t, 401, de.StatusCode)
		assert.False(t, called)
		assert.Equal(t, 1, client.submitCalls)
		assert.Zero(t, client.queries)
		require.Len(t, rec.submissions, 1)
		assert.Error(t, rec.submissions[0])
		assert.Empty(t, rec.outcomes)
	})

	t.Run("ポーリングの失敗をそのまま返す", func(t *testing.T) {
		client := &mockClient{
			credential: true,
			handle:     domain.TaskHandle{TaskID: "abc"},
			replies:    []statusReply{pending()},
		}
		g := newTestGenerator(t, client, &mockRecorder{})

		url, err := g.Generate(ctx, domain.TextToVideo, "a cat", nil, nil)

		assert.Empty(t, url)
		assert.Equal(t, domain.KindPollTimeout, domain.KindOf(err))
		assert.Equal(t, 3, client.queries)
	})
}
