// Package session keeps the process-wide table of ingested repositories and
// their conversation histories.
package session

import (
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"repochat/internal/errors"
	"repochat/internal/vectorindex"
)

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a session's history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Meta describes where a session's index came from.
type Meta struct {
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	Files     int       `json:"files"`
	Fragments int       `json:"fragments"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// Session is an immutable index plus an append-only history.
type Session struct {
	ID    string
	Meta  Meta
	Index *vectorindex.Index

	mu      sync.Mutex
	history []Turn
}

// History returns a copy of the turns so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Summary is the listing view of a session.
type Summary struct {
	ID string `json:"id"`
	Meta
	Turns int `json:"turns"`
}

func (s *Session) summary() Summary {
	s.mu.Lock()
	turns := len(s.history)
	s.mu.Unlock()
	return Summary{ID: s.ID, Meta: s.Meta, Turns: turns}
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Store is a sharded, concurrency-safe session table.
type Store struct {
	shards []*shard
	nextID atomic.Uint64
}

// DefaultShards is used when NewStore is given a non-positive count.
const DefaultShards = 16

// NewStore creates an empty table.
func NewStore(shards int) *Store {
	if shards <= 0 {
		shards = DefaultShards
	}
	s := &Store{shards: make([]*shard, shards)}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// AllocateID returns a fresh identifier. The first one is "1".
func (s *Store) AllocateID() string {
	return strconv.FormatUint(s.nextID.Add(1), 10)
}

// Create registers a session with an empty history.
func (s *Store) Create(id string, idx *vectorindex.Index, meta Meta) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.sessions[id]; exists {
		return errors.Newf(errors.DuplicateSession, "session %s already exists", id)
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	sh.sessions[id] = &Session{ID: id, Meta: meta, Index: idx}
	return nil
}

// Register allocates an id and creates the session under it.
func (s *Store) Register(idx *vectorindex.Index, meta Meta) (string, error) {
	id := s.AllocateID()
	if err := s.Create(id, idx, meta); err != nil {
		return "", err
	}
	return id, nil
}

// Get looks up a session.
func (s *Store) Get(id string) (*Session, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	sess, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.SessionNotFound, "Session not found").WithDetails("sessionId", id)
	}
	return sess, nil
}

// AppendTurns appends a user turn and an assistant turn as one unit.
func (s *Store) AppendTurns(id string, user, assistant string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.history = append(sess.history,
		Turn{Role: RoleUser, Content: user},
		Turn{Role: RoleAssistant, Content: assistant},
	)
	sess.mu.Unlock()
	return nil
}

// History returns a copy of a session's turns.
func (s *Store) History(id string) ([]Turn, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.History(), nil
}

// Summary returns the listing view of one session.
func (s *Store) Summary(id string) (Summary, error) {
	sess, err := s.Get(id)
	if err != nil {
		return Summary{}, err
	}
	return sess.summary(), nil
}

// List returns all sessions ordered by numeric id.
func (s *Store) List() []Summary {
	var out []Summary
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			out = append(out, sess.summary())
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.ParseUint(out[i].ID, 10, 64)
		b, errB := strconv.ParseUint(out[j].ID, 10, 64)
		if errA != nil || errB != nil {
			return out[i].ID < out[j].ID
		}
		return a < b
	})
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}
