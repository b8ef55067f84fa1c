// Package notify carries short-lived user-facing messages (popups) from the
// lyrics core to whatever surface displays them.
package notify

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Type 消息类型
type Type string

const (
	Success Type = "success"
	Error   Type = "error"
	Info    Type = "info"
)

// Message 一条临时提示
type Message struct {
	Text string `json:"text"`
	Type Type   `json:"type"`
	Long bool   `json:"long,omitempty"` // 长时间显示
}

// Notifier displays transient messages.
type Notifier interface {
	Notify(Message)
}

// Func adapts a function to Notifier.
type Func func(Message)

func (f Func) Notify(m Message) { f(m) }

// Nop discards every message.
var Nop Notifier = Func(func(Message) {})

type logNotifier struct{}

// Log writes messages to the global zerolog logger.
func Log() Notifier { return logNotifier{} }

func (logNotifier) Notify(m Message) {
	ev := log.Info()
	if m.Type == Error {
		ev = log.Warn()
	}
	ev.Str("component", "notify").Str("type", string(m.Type)).Msg(m.Text)
}

// Multi fans a message out to every notifier.
func Multi(ns ...Notifier) Notifier {
	return Func(func(m Message) {
		for _, n := range ns {
			if n != nil {
				n.Notify(m)
			}
		}
	})
}

// Gate forwards messages only while enabled, mirroring the
// "show lyrics popup messages" preference.
type Gate struct {
	next    Notifier
	mu      sync.RWMutex
	enabled bool
}

func NewGate(next Notifier, enabled bool) *Gate {
	return &Gate{next: next, enabled: enabled}
}

func (g *Gate) SetEnabled(enabled bool) {
	g.mu.Lock()
	g.enabled = enabled
	g.mu.Unlock()
}

func (g *Gate) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled
}

func (g *Gate) Notify(m Message) {
	if !g.Enabled() {
		return
	}
	g.next.Notify(m)
}

// Recorder keeps every message; used by tests and the HTTP API history.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(m Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
