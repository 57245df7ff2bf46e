package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/aretw0/kvsession/pkg/ports"
)

// RedactedValue replaces masked attribute values.
const RedactedValue = "***"

type redactionMiddleware struct {
	next     ports.SessionDataStorage
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks values of attributes
// whose names match any pattern before they reach the backend.
// Nested maps are masked recursively; the caller's record is left untouched.
func NewRedactionMiddleware(patternStrings []string) (StorageMiddleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: redaction pattern %q: %v", domain.ErrConfiguration, p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SessionDataStorage) ports.SessionDataStorage {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Create() *domain.SessionData {
	return m.next.Create()
}

func (m *redactionMiddleware) Save(ctx context.Context, data *domain.SessionData) error {
	if data == nil {
		return m.next.Save(ctx, data)
	}

	cloned := data.Clone()
	for _, name := range cloned.Names() {
		v, _ := cloned.Get(name)
		if m.matches(name) {
			cloned.Put(name, RedactedValue)
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			cloned.Put(name, m.mask(sub))
		}
	}

	return m.next.Save(ctx, cloned)
}

func (m *redactionMiddleware) Get(ctx context.Context, id string) (*domain.SessionData, bool, error) {
	return m.next.Get(ctx, id)
}

func (m *redactionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactionMiddleware) matches(name string) bool {
	for _, p := range m.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// mask returns a masked copy of in.
func (m *redactionMiddleware) mask(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch {
		case m.matches(k):
			out[k] = RedactedValue
		default:
			if sub, ok := v.(map[string]any); ok {
				out[k] = m.mask(sub)
			} else {
				out[k] = v
			}
		}
	}
	return out
}
