package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vorahub/keyserver/internal/security"
	"github.com/vorahub/keyserver/internal/store"
)

// Binding outcome statuses as seen by game clients.
const (
	BindStatusFree    = "free"
	BindStatusPremium = "premium"
	BindStatusKick    = "kick"
)

// KickReasonHWIDLimit is returned when a key has no device slots left.
const KickReasonHWIDLimit = "HWID_LIMIT"

// BindRequest carries the client-reported data for one launch.
type BindRequest struct {
	Key      string
	HWID     string
	GameID   int64
	PlaceID  int64
	Username string
}

// BindResult is the decision for one launch.
type BindResult struct {
	Status  string
	Message string
	Reason  string
	Limit   int
}

// Bind evaluates a launch attempt against the key's state and device quota.
// The whole decision runs under the per-key lock so that two simultaneous
// launches cannot both pass the quota check.
//
// This path deliberately does not consult the blacklist or voucher store:
// possession of a valid key string is the only credential, matching the
// behavior of the chat-based system it replaces.
func (s *Service) Bind(ctx context.Context, req BindRequest) (BindResult, error) {
	keyID := security.NormalizeKeyToken(req.Key)
	hwid := strings.TrimSpace(req.HWID)

	unlock := s.locks.Lock(keyID)
	defer unlock()

	key, errGet := s.keys.Get(ctx, keyID)
	if errGet != nil {
		if errors.Is(errGet, store.ErrNotFound) {
			return BindResult{Status: BindStatusFree, Message: "Key not found"}, nil
		}
		return BindResult{}, fmt.Errorf("bind: %w", errGet)
	}

	if key.Expired(s.now()) {
		return BindResult{Status: BindStatusFree, Message: "Key expired"}, nil
	}

	if key.IsUsed {
		bound := key.BoundHWIDs()
		if slices.Contains(bound, hwid) {
			return BindResult{Status: BindStatusPremium, Message: "Welcome back"}, nil
		}
		if len(bound) >= key.HWIDLimit {
			return BindResult{
				Status: BindStatusKick,
				Reason: KickReasonHWIDLimit,
				Limit:  key.HWIDLimit,
			}, nil
		}
		bound = append(bound, hwid)
		if errUpdate := s.keys.Update(ctx, keyID, map[string]any{
			"hwid": strings.Join(bound, ","),
		}); errUpdate != nil {
			return BindResult{}, fmt.Errorf("bind: %w", errUpdate)
		}
		return BindResult{Status: BindStatusPremium, Message: "New device registered"}, nil
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = "unknown"
	}
	now := s.now()
	if errUpdate := s.keys.Update(ctx, keyID, map[string]any{
		"is_used":  true,
		"used_by":  username,
		"hwid":     hwid,
		"game_id":  req.GameID,
		"place_id": req.PlaceID,
		"used_at":  now,
	}); errUpdate != nil {
		return BindResult{}, fmt.Errorf("bind: %w", errUpdate)
	}
	return BindResult{Status: BindStatusPremium, Message: "Key activated"}, nil
}
