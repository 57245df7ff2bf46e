package domain

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"reflect"
	"sort"
	"time"
)

// DefaultMaxInactiveInterval is the idle timeout applied when none is configured.
const DefaultMaxInactiveInterval = 30 * time.Minute

func init() {
	// Shapes produced by decoding JSON request bodies into attributes.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// SessionData is the persisted state of a single web session.
// The ID is assigned at construction and never changes.
type SessionData struct {
	id         string
	attributes map[string]any

	// CreationTime is when the session was first created.
	CreationTime time.Time

	// LastAccessedTime is updated by Touch.
	LastAccessedTime time.Time

	// MaxInactiveInterval is the idle timeout the session was created with.
	MaxInactiveInterval time.Duration
}

// NewSessionData creates an empty session with the given ID.
func NewSessionData(id string) *SessionData {
	now := time.Now().UTC()
	return &SessionData{
		id:                  id,
		attributes:          make(map[string]any),
		CreationTime:        now,
		LastAccessedTime:    now,
		MaxInactiveInterval: DefaultMaxInactiveInterval,
	}
}

// ID returns the session identifier.
func (s *SessionData) ID() string {
	return s.id
}

// Get returns the attribute stored under name.
func (s *SessionData) Get(name string) (any, bool) {
	v, ok := s.attributes[name]
	return v, ok
}

// Put stores value under name. A nil value removes the attribute.
func (s *SessionData) Put(name string, value any) {
	if value == nil {
		s.Remove(name)
		return
	}
	if s.attributes == nil {
		s.attributes = make(map[string]any)
	}
	s.attributes[name] = value
}

// Remove deletes the attribute stored under name.
func (s *SessionData) Remove(name string) {
	delete(s.attributes, name)
}

// Names returns the attribute names in lexical order.
func (s *SessionData) Names() []string {
	names := make([]string, 0, len(s.attributes))
	for k := range s.attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of attributes.
func (s *SessionData) Len() int {
	return len(s.attributes)
}

// Attributes returns a shallow copy of the attribute map.
func (s *SessionData) Attributes() map[string]any {
	out := make(map[string]any, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// Touch records an access at now.
func (s *SessionData) Touch(now time.Time) {
	s.LastAccessedTime = now.UTC()
}

// Clone returns a copy with its own attribute map.
func (s *SessionData) Clone() *SessionData {
	c := *s
	c.attributes = s.Attributes()
	return &c
}

// Equal reports whether both sessions carry the same ID, timing metadata and attributes.
func (s *SessionData) Equal(other *SessionData) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.id == other.id &&
		s.CreationTime.Equal(other.CreationTime) &&
		s.LastAccessedTime.Equal(other.LastAccessedTime) &&
		s.MaxInactiveInterval == other.MaxInactiveInterval &&
		reflect.DeepEqual(s.attributes, other.attributes)
}

// sessionSnapshot is the wire shape shared by the gob and JSON encodings.
type sessionSnapshot struct {
	ID                  string         `json:"id"`
	Attributes          map[string]any `json:"attributes"`
	CreationTime        time.Time      `json:"creationTime"`
	LastAccessedTime    time.Time      `json:"lastAccessedTime"`
	MaxInactiveInterval time.Duration  `json:"maxInactiveInterval"` // nanoseconds
}

func (s *SessionData) snapshot() sessionSnapshot {
	return sessionSnapshot{
		ID:                  s.id,
		Attributes:          s.attributes,
		CreationTime:        s.CreationTime,
		LastAccessedTime:    s.LastAccessedTime,
		MaxInactiveInterval: s.MaxInactiveInterval,
	}
}

func (s *SessionData) restore(snap sessionSnapshot) {
	s.id = snap.ID
	s.attributes = snap.Attributes
	if s.attributes == nil {
		s.attributes = make(map[string]any)
	}
	s.CreationTime = snap.CreationTime
	s.LastAccessedTime = snap.LastAccessedTime
	s.MaxInactiveInterval = snap.MaxInactiveInterval
}

// GobEncode implements gob.GobEncoder.
// Attribute values of non-builtin types must be registered with gob.Register.
func (s *SessionData) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.snapshot()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (s *SessionData) GobDecode(data []byte) error {
	var snap sessionSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	s.restore(snap)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s *SessionData) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.snapshot())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SessionData) UnmarshalJSON(data []byte) error {
	var snap sessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.restore(snap)
	return nil
}
