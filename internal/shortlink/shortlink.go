// Package shortlink shortens the long form/payment URLs sent over WhatsApp.
// Links expire after a day; a dead link just asks the user to request a new
// one from the chat.
package shortlink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sutenshah/ultra-events/internal/cache"
	"github.com/sutenshah/ultra-events/internal/helpers"
)

const (
	keyPrefix  = "shortlink:"
	idBytes    = 4
	defaultTTL = 24 * time.Hour
	maxRetries = 10
)

type Service struct {
	store cache.Store
	ttl   time.Duration
}

func New(store cache.Store) *Service {
	return &Service{store: store, ttl: defaultTTL}
}

// Shorten stores the URL under a fresh random id and returns the id.
func (s *Service) Shorten(ctx context.Context, fullURL string) (string, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id, err := helpers.GenerateShortID(idBytes)
		if err != nil {
			return "", err
		}
		if _, exists, err := s.store.Get(ctx, keyPrefix+id); err != nil {
			return "", err
		} else if exists {
			continue
		}
		if err := s.store.Set(ctx, keyPrefix+id, fullURL, s.ttl); err != nil {
			return "", err
		}
		return id, nil
	}

	// Random collisions this persistent mean the store is saturated;
	// fall back to a timestamp id.
	id := strconv.FormatInt(time.Now().UnixNano(), 36)
	if err := s.store.Set(ctx, keyPrefix+id, fullURL, s.ttl); err != nil {
		return "", err
	}
	return id, nil
}

// Resolve returns the stored URL, or ok=false when the id is unknown or
// expired.
func (s *Service) Resolve(ctx context.Context, id string) (string, bool, error) {
	url, ok, err := s.store.Get(ctx, keyPrefix+id)
	if err != nil {
		return "", false, fmt.Errorf("resolving short link %q: %w", id, err)
	}
	return url, ok, nil
}
