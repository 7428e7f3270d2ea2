package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/shouni/video-task-kit/pkg/domain"
	"github.com/shouni/video-task-kit/pkg/generator"
)

// --- Mocks ---

type sent struct {
	conv    domain.ConversationRef
	content domain.Content
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (m *fakeMessenger) SendMessage(ctx context.Context, conv domain.ConversationRef, content domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sent{conv: conv, content: content})
	return m.err
}

func (m *fakeMessenger) messages() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sent(nil), m.sent...)
}

func (m *fakeMessenger) last() domain.Content {
	msgs := m.messages()
	if len(msgs) == 0 {
		return domain.Content{}
	}
	return msgs[len(msgs)-1].content
}

type fakeGenerator struct {
	mu          sync.Mutex
	readyErr    error
	url         string
	err         error
	taskID      string
	panicWith   any
	block       chan struct{}
	generated   int
	gotPrompt   string
	gotImage    []byte
	gotKind     domain.CommandKind
	validateErr error
}

func (g *fakeGenerator) Ready() error { return g.readyErr }

func (g *fakeGenerator) Validate(kind domain.CommandKind, prompt string, image []byte) error {
	if g.validateErr != nil {
		return g.validateErr
	}
	if kind == domain.TextToVideo && prompt == "" {
		return domain.NewUserInputError("prompt is required")
	}
	return nil
}

func (g *fakeGenerator) Generate(ctx context.Context, kind domain.CommandKind, prompt string, image []byte, onSubmitted generator.SubmittedFunc) (string, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	g.generated++
	g.gotKind, g.gotPrompt, g.gotImage = kind, prompt, image
	g.mu.Unlock()
	if g.panicWith != nil {
		panic(g.panicWith)
	}
	if onSubmitted != nil && g.taskID != "" {
		onSubmitted(ctx, domain.TaskHandle{TaskID: g.taskID})
	}
	return g.url, g.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generated
}

type fakeLoader struct {
	data map[string][]byte
}

func (l *fakeLoader) LoadBytes(ctx context.Context, ref string) []byte {
	return l.data[ref]
}

type fakeCloser struct {
	mu     sync.Mutex
	closed int
}

func (c *fakeCloser) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

type fakeRecorder struct {
	mu       sync.Mutex
	commands []string
	errs     []error
}

func (r *fakeRecorder) ObserveCommand(command string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	r.errs = append(r.errs, err)
}

type fakePoster struct {
	url  string
	data any
	err  error
}

func (p *fakePoster) PostJSONAndFetchBytes(ctx context.Context, url string, data any) ([]byte, error) {
	p.url, p.data = url, data
	return nil, p.err
}

var errSend = errors.New("send failed")
