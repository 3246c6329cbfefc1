package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Topic names an onboarding lifecycle event.
type Topic string

const (
	TopicSessionCreated   Topic = "SESSION_CREATED"
	TopicSessionStarted   Topic = "SESSION_STARTED"
	TopicSessionCompleted Topic = "SESSION_COMPLETED"
	TopicSessionApproved  Topic = "SESSION_APPROVED"
	TopicResponseSaved    Topic = "RESPONSE_SAVED"
	TopicFileUploaded     Topic = "FILE_UPLOADED"
)

// SessionPayload accompanies session lifecycle topics.
type SessionPayload struct {
	SessionID      string
	OrganizationID string
	ProjectID      *string
}

// ResponsePayload accompanies RESPONSE_SAVED.
type ResponsePayload struct {
	SessionID string
	StepID    string
	FieldID   string
}

// FilePayload accompanies FILE_UPLOADED.
type FilePayload struct {
	SessionID      string
	FileID         string
	OrganizationID string
}

// Handler consumes one event payload.
type Handler func(ctx context.Context, payload interface{}) error

// Bus is an in-process publish/subscribe dispatcher. Handlers for a topic run
// concurrently and the emitter waits for all of them; a failing or panicking
// handler is logged and never reaches the emitter. The bus is built once at
// the composition root, so registration cannot double up across imports.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
	logger   *zap.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: make(map[Topic][]Handler), logger: logger}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Emit invokes every handler registered for the topic concurrently and blocks
// until all of them return.
func (b *Bus) Emit(ctx context.Context, topic Topic, payload interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[topic]))
	copy(handlers, b.handlers[topic])
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						zap.String("topic", string(topic)),
						zap.Any("panic", r))
				}
			}()
			if err := h(ctx, payload); err != nil {
				b.logger.Error("event handler failed",
					zap.String("topic", string(topic)),
					zap.Error(err))
			}
		}(handler)
	}
	wg.Wait()
}
