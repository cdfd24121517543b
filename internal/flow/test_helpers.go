package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go"
)

// fakeOracle is a scripted genai.ClientInterface for tests. The generate
// function receives the system and user prompts and decides the response.
type fakeOracle struct {
	mu       sync.Mutex
	generate func(systemPrompt, userPrompt string) (string, error)
	calls    int
}

func (f *fakeOracle) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.generate == nil {
		return "", nil
	}
	return f.generate(systemPrompt, userPrompt)
}

func (f *fakeOracle) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return "", nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// sentMail records one delivery accepted by fakeSender.
type sentMail struct {
	To      string
	Subject string
	Body    string
}

// fakeSender is a mail.Sender that records sends and fails on demand.
type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{failTo: make(map[string]bool)}
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to] {
		return fmt.Errorf("delivery refused for %s", to)
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeNotifier is a mail.Notifier that records notifications and fails on
// demand.
type fakeNotifier struct {
	bodies []string
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, body string) error {
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}
