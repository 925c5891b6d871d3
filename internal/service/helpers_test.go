package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"moodchat-be/internal/model"
	"moodchat-be/pkg/classifier"

	"github.com/google/uuid"
)

func newOpenSession(userId string) *model.ChatSession {
	return &model.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		StartedAt: time.Now().Add(-time.Minute),
	}
}

// nopLogger satisfies logger.ILogger without writing anywhere.
type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type sentFrame struct {
	ConnID uuid.UUID
	Type   string
	Data   interface{}
}

// fakeEmitter records every outbound frame for assertions.
type fakeEmitter struct {
	mu        sync.Mutex
	sent      []sentFrame
	broadcast []sentFrame
}

func (e *fakeEmitter) SendToConn(connID uuid.UUID, frameType string, data interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, sentFrame{ConnID: connID, Type: frameType, Data: data})
}

func (e *fakeEmitter) BroadcastAll(frameType string, data interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcast = append(e.broadcast, sentFrame{Type: frameType, Data: data})
}

func (e *fakeEmitter) sentOfType(frameType string) []sentFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []sentFrame
	for _, f := range e.sent {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

func (e *fakeEmitter) broadcastOfType(frameType string) []sentFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []sentFrame
	for _, f := range e.broadcast {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

// fakeProvider scripts classifier outcomes per message text.
type fakeProvider struct {
	mu      sync.Mutex
	results map[string]*classifier.Result
	errors  map[string]error
	calls   []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		results: make(map[string]*classifier.Result),
		errors:  make(map[string]error),
	}
}

func (p *fakeProvider) Classify(ctx context.Context, text string) (*classifier.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, text)
	if err, ok := p.errors[text]; ok {
		return nil, err
	}
	if res, ok := p.results[text]; ok {
		return res, nil
	}
	return nil, errors.New("no scripted result")
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
