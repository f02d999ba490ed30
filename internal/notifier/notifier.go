// Package notifier reports non-fatal lint session problems to the host.
//
// Components never surface warnings directly; they hand them to a Notifier,
// which logs them and broadcasts them to every subscribed front end (the
// LSP adapter forwards them as window/showMessage, the CLI prints them).
package notifier

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a Message.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Message is a user-facing notification.
type Message struct {
	Level Level
	Kind  Kind // zero for plain informational messages
	Text  string
}

// listenerBuffer bounds how many messages a slow listener may lag behind.
const listenerBuffer = 16

// Notifier broadcasts messages to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Message]struct{}
	logger    *slog.Logger
}

// New creates a Notifier. A nil logger discards log output.
func New(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		listeners: make(map[chan Message]struct{}),
		logger:    logger,
	}
}

// Subscribe returns a channel that receives every subsequent message.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan Message {
	ch := make(chan Message, listenerBuffer)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Message) {
	n.mu.Lock()
	_, ok := n.listeners[ch]
	delete(n.listeners, ch)
	n.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Broadcast logs msg and delivers it to all listeners.
// Non-blocking: a listener whose buffer is full misses the message.
func (n *Notifier) Broadcast(msg Message) {
	n.log(msg)

	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- msg:
		default:
			n.logger.Debug("notification dropped for slow listener", "text", msg.Text)
		}
	}
}

// Info broadcasts an informational message.
func (n *Notifier) Info(text string) {
	n.Broadcast(Message{Level: LevelInfo, Text: text})
}

// Warn broadcasts err as a warning, classified by its Kind.
func (n *Notifier) Warn(err error) {
	if err == nil {
		return
	}
	n.Broadcast(Message{Level: LevelWarning, Kind: KindOf(err), Text: err.Error()})
}

// Fail broadcasts err as an error-level message.
func (n *Notifier) Fail(err error) {
	if err == nil {
		return
	}
	n.Broadcast(Message{Level: LevelError, Kind: KindOf(err), Text: err.Error()})
}

func (n *Notifier) log(msg Message) {
	level := slog.LevelInfo
	switch msg.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	attrs := []any{}
	if msg.Kind != 0 {
		attrs = append(attrs, "kind", msg.Kind.String())
	}
	n.logger.Log(context.Background(), level, msg.Text, attrs...)
}
