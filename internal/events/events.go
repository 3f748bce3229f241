// Package events appends tamper-evident workflow events to a JSON Lines log.
//
// Each event carries an HMAC-SHA256 signature over its canonical JSON body,
// so after-the-fact edits to the log are detectable by anyone holding the
// signing key. The log is append-only; rewriting history would invalidate
// every later signature check.
package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrNoSecret means no signing key is configured; the logger is unavailable
// and callers should record the logging step as skipped.
var ErrNoSecret = errors.New("no event signing secret configured")

// Event is one signed entry in the event log.
type Event struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Agent     string         `json:"agent"`
	Data      map[string]any `json:"data"`
	Signature string         `json:"signature"`
}

// Logger writes signed events.
//
// The zero value is not usable; create with [NewLogger].
type Logger struct {
	path   string
	secret []byte
	now    func() time.Time
}

// NewLogger creates a Logger writing to path, signing with secret.
func NewLogger(path, secret string) *Logger {
	return &Logger{path: path, secret: []byte(secret), now: time.Now}
}

// SetNow replaces the clock, for tests.
func (l *Logger) SetNow(now func() time.Time) { l.now = now }

// Log signs and appends an event, returning it with ID and signature set.
func (l *Logger) Log(eventType, agent string, data map[string]any) (Event, error) {
	if len(l.secret) == 0 {
		return Event{}, ErrNoSecret
	}
	if data == nil {
		data = map[string]any{}
	}

	event := Event{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC().Format(time.RFC3339),
		Type:      eventType,
		Agent:     agent,
		Data:      data,
	}

	sig, err := l.sign(event)
	if err != nil {
		return Event{}, err
	}
	event.Signature = sig

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return Event{}, fmt.Errorf("failed to create events directory: %w", err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Event{}, fmt.Errorf("failed to open events log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return Event{}, fmt.Errorf("failed to append event: %w", err)
	}

	return event, nil
}

// VerifySignature recomputes an event's signature and compares it in
// constant time.
func (l *Logger) VerifySignature(event Event) (bool, error) {
	if len(l.secret) == 0 {
		return false, ErrNoSecret
	}
	expected, err := l.sign(event)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(event.Signature)), nil
}

// sign computes the HMAC over the event body with the signature field empty.
// json.Marshal emits struct fields in declaration order, which makes the
// serialization canonical for signing purposes.
func (l *Logger) sign(event Event) (string, error) {
	event.Signature = ""
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event for signing: %w", err)
	}
	mac := hmac.New(sha256.New, l.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
