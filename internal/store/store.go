// Package store persists download records.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/famomatic/vodfetch/internal/progress"
	"github.com/famomatic/vodfetch/internal/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record tracks one download job.
type Record struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	MediaID   string    `json:"media_id"`
	Episode   int       `json:"episode"`
	Status    Status    `json:"status"`
	Path      string    `json:"path,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord returns a pending record with a fresh id.
func NewRecord(channel, mediaID string, episode int) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:        uuid.NewString(),
		Channel:   channel,
		MediaID:   mediaID,
		Episode:   episode,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Update describes a status transition.
type Update struct {
	Status Status
	Path   string
	Reason string
}

// Store is implemented by Memory and Redis.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, id string, u Update) error
	// List returns records newest first.
	List(ctx context.Context) ([]*Record, error)
	Close() error
}

// UpdateFor maps a progress event to the record transition it implies.
func UpdateFor(ev progress.Event) (Update, bool) {
	switch e := ev.(type) {
	case progress.Started:
		return Update{Status: StatusInProgress}, true
	case progress.Done:
		return Update{Status: StatusCompleted, Path: e.LocalPath}, true
	case progress.Failed:
		return Update{Status: StatusFailed, Reason: e.Reason}, true
	default:
		return Update{}, false
	}
}

func apply(rec *Record, u Update) {
	rec.Status = u.Status
	if u.Path != "" {
		rec.Path = u.Path
	}
	if u.Reason != "" {
		rec.Reason = u.Reason
	}
	rec.UpdatedAt = time.Now().UTC()
}

func notFound(id string) error {
	return &types.NotFoundError{Kind: "record", ID: id}
}

// Memory keeps records for the lifetime of the process.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*Record)}
}

func (m *Memory) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.ID]; exists {
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, notFound(id)
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) Update(_ context.Context, id string, u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return notFound(id)
	}
	apply(rec, u)
	return nil
}

func (m *Memory) List(_ context.Context) ([]*Record, error) {
	m.mu.RLock()
	out := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

func sortNewestFirst(recs []*Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID > recs[j].ID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
