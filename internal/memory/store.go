// Package memory keeps per-client conversational state: the transcript,
// learned preferences with confidence scores, and lead details. State is
// in-process; restarting the service forgets everything, which matches a
// leasing-chat session model.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"renterchat/internal/llm"
	"renterchat/internal/logging"
	"renterchat/internal/prefs"
)

// Message is one turn in a client's transcript.
type Message struct {
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Lead identifies the prospective renter.
type Lead struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FirstName returns the lead's first name, for greetings.
func (l Lead) FirstName() string {
	fields := strings.Fields(l.Name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

// Profile is everything remembered about one client.
type Profile struct {
	ClientID       string             `json:"client_id"`
	Lead           Lead               `json:"lead"`
	CommunityID    string             `json:"community_id"`
	Transcript     []Message          `json:"transcript"`
	Preferences    prefs.Preferences  `json:"preferences"`
	Confidence     map[string]float64 `json:"confidence_scores"`
	SourceMessages []string           `json:"source_messages"`
	LastUpdated    time.Time          `json:"last_updated"`
}

// Stats summarizes store contents for the diagnostics endpoint.
type Stats struct {
	ClientCount   int `json:"client_count"`
	TotalMessages int `json:"total_messages"`
}

// Store holds profiles keyed by client ID. Safe for concurrent use; each
// mutation takes the write lock so a profile never updates half-way.
type Store struct {
	mu        sync.RWMutex
	profiles  map[string]*Profile
	extractor *prefs.Extractor // nil disables preference learning

	now func() time.Time
}

// StoreOption customizes Store construction.
type StoreOption func(*Store)

// WithExtractor enables preference learning on recorded user messages.
func WithExtractor(e *prefs.Extractor) StoreOption {
	return func(s *Store) { s.extractor = e }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		profiles: make(map[string]*Profile),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordUser appends a user message to the client's transcript and learns
// preferences from it. Extraction runs before the lock is taken since it
// calls out to a model; a failed or empty extraction never blocks the
// message from being recorded.
func (s *Store) RecordUser(ctx context.Context, clientID string, lead Lead, communityID, message string) {
	var extracted prefs.Preferences
	if s.extractor != nil {
		var err error
		extracted, err = s.extractor.Extract(ctx, message, s.recentContext(clientID))
		if err != nil {
			logging.Get(logging.CategoryMemory).Warn("preference extraction failed for %s: %v", clientID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreateLocked(clientID)
	p.Lead = lead
	p.CommunityID = communityID
	p.Transcript = append(p.Transcript, Message{Role: llm.RoleUser, Content: message, Timestamp: s.now()})

	if !extracted.IsEmpty() {
		merged, scores := p.Preferences.Merge(extracted, message)
		p.Preferences = merged
		for field, score := range scores {
			p.Confidence[field] = score
			logging.MemoryDebug("client %s learned %s (confidence %.2f)", clientID, field, score)
		}
		if len(scores) > 0 && !containsMessage(p.SourceMessages, message) {
			p.SourceMessages = append(p.SourceMessages, message)
		}
	}
	p.LastUpdated = s.now()

	logging.Memory("recorded user message for %s (%d messages, %d learned fields)",
		clientID, len(p.Transcript), len(p.Preferences.Known()))
}

// RecordAssistant appends the assistant's reply to the transcript.
func (s *Store) RecordAssistant(clientID, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreateLocked(clientID)
	p.Transcript = append(p.Transcript, Message{Role: llm.RoleAssistant, Content: reply, Timestamp: s.now()})
	p.LastUpdated = s.now()
}

// Profile returns a deep copy of the client's profile.
func (s *Store) Profile(clientID string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[clientID]
	if !ok {
		return Profile{}, false
	}
	return copyProfile(p), true
}

// Transcript returns a copy of the client's message history.
func (s *Store) Transcript(clientID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[clientID]
	if !ok {
		return nil
	}
	out := make([]Message, len(p.Transcript))
	copy(out, p.Transcript)
	return out
}

// Clear forgets a client entirely. Reports whether anything was removed.
func (s *Store) Clear(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[clientID]; !ok {
		return false
	}
	delete(s.profiles, clientID)
	logging.Memory("cleared memory for client %s", clientID)
	return true
}

// Stats reports client and message counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{ClientCount: len(s.profiles)}
	for _, p := range s.profiles {
		stats.TotalMessages += len(p.Transcript)
	}
	return stats
}

// recentContext summarizes the last few user turns for the extractor.
func (s *Store) recentContext(clientID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[clientID]
	if !ok {
		return ""
	}

	var recent []string
	for i := len(p.Transcript) - 1; i >= 0 && len(recent) < 3; i-- {
		if p.Transcript[i].Role == llm.RoleUser {
			recent = append([]string{p.Transcript[i].Content}, recent...)
		}
	}
	return strings.Join(recent, " | ")
}

func (s *Store) getOrCreateLocked(clientID string) *Profile {
	p, ok := s.profiles[clientID]
	if !ok {
		p = &Profile{
			ClientID:   clientID,
			Confidence: make(map[string]float64),
		}
		s.profiles[clientID] = p
	}
	return p
}

func copyProfile(p *Profile) Profile {
	out := *p
	out.Transcript = append([]Message(nil), p.Transcript...)
	out.SourceMessages = append([]string(nil), p.SourceMessages...)
	out.Confidence = make(map[string]float64, len(p.Confidence))
	for k, v := range p.Confidence {
		out.Confidence[k] = v
	}
	return out
}

func containsMessage(list []string, msg string) bool {
	for _, m := range list {
		if m == msg {
			return true
		}
	}
	return false
}
