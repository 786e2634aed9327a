package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/vorahub/keyserver/internal/models"
	"github.com/vorahub/keyserver/internal/security"
	"github.com/vorahub/keyserver/internal/store"
)

// WhitelistAdd creates a whitelist entry plus a matching permanently valid,
// pre-bound key. Returns the created key ID.
func (s *Service) WhitelistAdd(ctx context.Context, executor, userID, discordTag string) (string, error) {
	if _, errGet := s.whitelist.Get(ctx, userID); errGet == nil {
		return "", ErrAlreadyWhitelisted
	} else if !errors.Is(errGet, store.ErrNotFound) {
		return "", fmt.Errorf("whitelist add: %w", errGet)
	}

	token, errToken := security.GenerateKeyToken(s.keyPrefix)
	if errToken != nil {
		return "", fmt.Errorf("whitelist add: %w", errToken)
	}

	now := s.now()
	entry := &models.Whitelist{
		UserID:     userID,
		DiscordTag: discordTag,
		Key:        token,
		AddedBy:    executor,
		AddedAt:    now,
	}
	if errCreate := s.whitelist.Create(ctx, entry); errCreate != nil {
		return "", fmt.Errorf("whitelist add: %w", errCreate)
	}

	key := &models.Key{
		ID:            token,
		UserID:        userID,
		DiscordTag:    discordTag,
		Feature:       "whitelist",
		Status:        models.KeyStatusActive,
		IsWhitelisted: true,
		IsUsed:        true,
		CreatedAt:     now,
		CreatedBy:     executor,
	}
	if errCreate := s.keys.Create(ctx, key); errCreate != nil {
		return "", fmt.Errorf("whitelist add: %w", errCreate)
	}

	s.cache.Invalidate(ctx, userID, discordTag)
	s.emit("WHITELIST ADD", executor, discordTag, "Add", "Key: "+token)
	return token, nil
}

// WhitelistRemove deletes a user's whitelist entry and its associated key.
func (s *Service) WhitelistRemove(ctx context.Context, executor, userID, discordTag string) error {
	entry, errGet := s.whitelist.Get(ctx, userID)
	if errGet != nil {
		if errors.Is(errGet, store.ErrNotFound) {
			return ErrNotWhitelisted
		}
		return fmt.Errorf("whitelist remove: %w", errGet)
	}

	if _, errDelete := s.whitelist.Delete(ctx, userID); errDelete != nil {
		return fmt.Errorf("whitelist remove: %w", errDelete)
	}
	if entry.Key != "" {
		if errDelete := s.keys.Delete(ctx, entry.Key); errDelete != nil {
			return fmt.Errorf("whitelist remove: %w", errDelete)
		}
	}

	s.cache.Invalidate(ctx, userID, discordTag)
	s.emit("WHITELIST REMOVE", executor, discordTag, "Remove", "")
	return nil
}

// BlacklistAdd bans a user and cascades: any whitelist entry is removed and
// every key the user owns is deleted. Returns the number of deleted keys.
func (s *Service) BlacklistAdd(ctx context.Context, executor, userID, discordTag, reason string) (int64, error) {
	banned, errBanned := s.blacklist.Exists(ctx, userID)
	if errBanned != nil {
		return 0, fmt.Errorf("blacklist add: %w", errBanned)
	}
	if banned {
		return 0, ErrAlreadyBlacklisted
	}

	entry := &models.Blacklist{
		UserID:     userID,
		DiscordTag: discordTag,
		Reason:     reason,
		AddedBy:    executor,
		AddedAt:    s.now(),
	}
	if errCreate := s.blacklist.Create(ctx, entry); errCreate != nil {
		return 0, fmt.Errorf("blacklist add: %w", errCreate)
	}

	if _, errDelete := s.whitelist.Delete(ctx, userID); errDelete != nil {
		return 0, fmt.Errorf("blacklist add: %w", errDelete)
	}
	deleted, errKeys := s.keys.DeleteByUser(ctx, userID)
	if errKeys != nil {
		return 0, fmt.Errorf("blacklist add: %w", errKeys)
	}

	s.cache.Invalidate(ctx, userID, discordTag)
	s.emit("BLACKLIST ADD", executor, discordTag, "Add", fmt.Sprintf("Keys Deleted: %d", deleted))
	return deleted, nil
}

// BlacklistRemove lifts a ban. Deleted keys are not restored.
func (s *Service) BlacklistRemove(ctx context.Context, executor, userID, discordTag string) error {
	deleted, errDelete := s.blacklist.Delete(ctx, userID)
	if errDelete != nil {
		return fmt.Errorf("blacklist remove: %w", errDelete)
	}
	if !deleted {
		return ErrNotBlacklisted
	}

	s.emit("BLACKLIST REMOVE", executor, discordTag, "Remove", "")
	return nil
}

// Generate creates pending vouchers. Expiry is decided at redemption time,
// never at generation.
func (s *Service) Generate(ctx context.Context, executor string, amount int) ([]string, error) {
	if amount < 1 {
		return nil, fmt.Errorf("generate: amount must be positive")
	}

	now := s.now()
	tokens := make([]string, 0, amount)
	vouchers := make([]models.GeneratedKey, 0, amount)
	for i := 0; i < amount; i++ {
		token, errToken := security.GenerateKeyToken(s.keyPrefix)
		if errToken != nil {
			return nil, fmt.Errorf("generate: %w", errToken)
		}
		tokens = append(tokens, token)
		vouchers = append(vouchers, models.GeneratedKey{
			ID:        token,
			CreatedBy: executor,
			CreatedAt: now,
			Status:    models.GeneratedKeyStatusPending,
		})
	}
	if errCreate := s.vouchers.CreateBatch(ctx, vouchers); errCreate != nil {
		return nil, fmt.Errorf("generate: %w", errCreate)
	}

	s.emit("GENKEY", executor, "", "Generate", "Amount: "+strconv.Itoa(amount))
	return tokens, nil
}

// RemoveKeys deletes every key a user owns. Returns the number deleted.
func (s *Service) RemoveKeys(ctx context.Context, executor, userID, discordTag string) (int64, error) {
	deleted, errDelete := s.keys.DeleteByUser(ctx, userID)
	if errDelete != nil {
		return 0, fmt.Errorf("remove keys: %w", errDelete)
	}

	s.cache.Invalidate(ctx, userID, discordTag)
	s.emit("REMOVEKEY", executor, discordTag, "Remove", fmt.Sprintf("Keys Deleted: %d", deleted))
	return deleted, nil
}

// SetHWIDLimit updates the device quota on all keys a user owns. Devices
// already bound stay bound; the binder only consults the limit before
// registering new ones.
func (s *Service) SetHWIDLimit(ctx context.Context, executor, userID, discordTag string, limit int) (int64, error) {
	if limit < 1 {
		return 0, fmt.Errorf("set hwid limit: limit must be positive")
	}

	updated, errUpdate := s.keys.UpdateByUser(ctx, userID, map[string]any{"hwid_limit": limit})
	if errUpdate != nil {
		return 0, fmt.Errorf("set hwid limit: %w", errUpdate)
	}

	s.cache.Invalidate(ctx, userID, discordTag)
	s.emit("SETHWIDLIMIT", executor, discordTag, "Update", "Limit: "+strconv.Itoa(limit))
	return updated, nil
}

// InspectKeys returns every key a user owns, activated or not.
func (s *Service) InspectKeys(ctx context.Context, userID string) ([]models.Key, error) {
	keys, errList := s.keys.ListByUser(ctx, userID)
	if errList != nil {
		return nil, fmt.Errorf("inspect keys: %w", errList)
	}
	return keys, nil
}

// SearchKeys returns keys whose ID contains the fragment.
func (s *Service) SearchKeys(ctx context.Context, fragment string, limit int) ([]models.Key, error) {
	keys, errSearch := s.keys.SearchByToken(ctx, fragment, limit)
	if errSearch != nil {
		return nil, fmt.Errorf("search keys: %w", errSearch)
	}
	return keys, nil
}

// WhitelistEntries returns the most recent whitelist entries.
func (s *Service) WhitelistEntries(ctx context.Context, limit int) ([]models.Whitelist, error) {
	entries, errList := s.whitelist.List(ctx, limit)
	if errList != nil {
		return nil, fmt.Errorf("whitelist entries: %w", errList)
	}
	return entries, nil
}

// BlacklistEntries returns the most recent blacklist entries.
func (s *Service) BlacklistEntries(ctx context.Context, limit int) ([]models.Blacklist, error) {
	entries, errList := s.blacklist.List(ctx, limit)
	if errList != nil {
		return nil, fmt.Errorf("blacklist entries: %w", errList)
	}
	return entries, nil
}

// Stats reports record counts across the key, whitelist, blacklist and
// voucher stores.
type Stats struct {
	Keys      int64 `json:"keys"`
	Whitelist int64 `json:"whitelist"`
	Blacklist int64 `json:"blacklist"`
	Generated int64 `json:"generated"`
}

// Stats returns current record counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	var err error
	if out.Keys, err = s.keys.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	if out.Whitelist, err = s.whitelist.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	if out.Blacklist, err = s.blacklist.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	if out.Generated, err = s.vouchers.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return out, nil
}

// OwnedKeys returns the user's currently valid key IDs via the ownership cache.
func (s *Service) OwnedKeys(ctx context.Context, userID, discordTag string) []string {
	return s.cache.Lookup(ctx, userID, discordTag, false)
}
