// Package signoff manages human sign-off records for gate passage.
//
// Output gates from phase 2 onwards require a human sign-off, which breaks
// the "fox guarding the henhouse" problem of agents approving their own
// work. A sign-off moves through request (token issued) and verify (token
// confirmed) states, each persisted as a per-gate JSON record written
// atomically.
package signoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Record is the persisted state of one gate's sign-off.
type Record struct {
	Stage       int    `json:"stage"`
	Phase       int    `json:"phase"`
	GateType    string `json:"gate_type"`
	Status      string `json:"status"` // PENDING or VERIFIED
	Token       string `json:"token,omitempty"`
	RequestedAt string `json:"requested_at,omitempty"`
	VerifiedAt  string `json:"verified_at,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// Status is the answer to "may this gate proceed on the human axis".
type Status struct {
	Required   bool
	Verified   bool
	Token      string
	ExpiresAt  string
	VerifiedAt string
	Message    string
}

// Sentinel errors for token verification.
var (
	// ErrTokenNotFound means no pending sign-off carries the given token.
	ErrTokenNotFound = errors.New("sign-off token not found")

	// ErrTokenExpired means the token matched but its expiry has passed.
	ErrTokenExpired = errors.New("sign-off token expired")
)

// Store reads and writes sign-off records in a directory, one JSON file per
// (stage, phase, gate type).
type Store struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a Store rooted at dir. ttl is the token lifetime.
func NewStore(dir string, ttl time.Duration) *Store {
	return &Store{dir: dir, ttl: ttl, now: time.Now}
}

// SetNow replaces the clock, for tests.
func (s *Store) SetNow(now func() time.Time) { s.now = now }

// Required reports whether a gate needs human sign-off: output gates at
// phase 2 and beyond.
func Required(phase int, gateType string) bool {
	return gateType == "output" && phase >= 2
}

func (s *Store) recordPath(stage, phase int, gateType string) string {
	return filepath.Join(s.dir, fmt.Sprintf("stage%d-phase%d-%s-signoff.json", stage, phase, gateType))
}

// Check returns the sign-off status for a gate.
//
// A corrupted record reads as unverified rather than erroring, so an
// attacker cannot bypass the gate by mangling the file.
func (s *Store) Check(stage, phase int, gateType string) Status {
	if !Required(phase, gateType) {
		return Status{
			Required: false,
			Verified: true,
			Message:  "User sign-off not required for this gate",
		}
	}

	data, err := os.ReadFile(s.recordPath(stage, phase, gateType))
	if err != nil {
		return Status{
			Required: true,
			Message:  "User sign-off required but not requested yet",
		}
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Status{
			Required: true,
			Message:  "Sign-off record corrupted",
		}
	}

	if rec.Status == "VERIFIED" {
		return Status{
			Required:   true,
			Verified:   true,
			VerifiedAt: rec.VerifiedAt,
			Message:    "User sign-off verified",
		}
	}

	return Status{
		Required:  true,
		Token:     rec.Token,
		ExpiresAt: rec.ExpiresAt,
		Message:   "User sign-off pending verification",
	}
}

// Request creates a pending sign-off with a fresh token and expiry.
// An existing pending record is replaced with a new token.
func (s *Store) Request(stage, phase int, gateType string) (Record, error) {
	now := s.now()
	rec := Record{
		Stage:       stage,
		Phase:       phase,
		GateType:    gateType,
		Status:      "PENDING",
		Token:       uuid.NewString(),
		RequestedAt: now.Format(time.RFC3339),
		ExpiresAt:   now.Add(s.ttl).Format(time.RFC3339),
	}

	if err := s.write(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Verify finds the pending record carrying token and marks it VERIFIED.
func (s *Store) Verify(token string) (Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrTokenNotFound
		}
		return Record{}, fmt.Errorf("failed to read sign-off directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.Status != "PENDING" || rec.Token != token {
			continue
		}

		if rec.ExpiresAt != "" {
			expires, err := time.Parse(time.RFC3339, rec.ExpiresAt)
			if err == nil && s.now().After(expires) {
				return Record{}, ErrTokenExpired
			}
		}

		rec.Status = "VERIFIED"
		rec.VerifiedAt = s.now().Format(time.RFC3339)
		rec.Token = ""
		if err := s.write(rec); err != nil {
			return Record{}, err
		}
		return rec, nil
	}

	return Record{}, ErrTokenNotFound
}

// write persists a record atomically: temp file, then rename.
func (s *Store) write(rec Record) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create sign-off directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sign-off record: %w", err)
	}

	path := s.recordPath(rec.Stage, rec.Phase, rec.GateType)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write sign-off record: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write sign-off record: %w", err)
	}
	return nil
}
