package service

import "errors"

// Domain errors returned by the engines. These are expected outcomes and are
// matched with errors.Is at the transport boundary; anything else is a
// persistence fault.
var (
	// ErrInvalidKey indicates a redemption token with no pending voucher.
	ErrInvalidKey = errors.New("invalid key")
	// ErrAlreadyUsed indicates the token was already converted into a key.
	ErrAlreadyUsed = errors.New("key already used")
	// ErrBlacklisted indicates the acting user is blacklisted.
	ErrBlacklisted = errors.New("user is blacklisted")
	// ErrAlreadyWhitelisted indicates the user already has a whitelist entry.
	ErrAlreadyWhitelisted = errors.New("already whitelisted")
	// ErrNotWhitelisted indicates the user has no whitelist entry.
	ErrNotWhitelisted = errors.New("not whitelisted")
	// ErrAlreadyBlacklisted indicates the user already has a blacklist entry.
	ErrAlreadyBlacklisted = errors.New("already blacklisted")
	// ErrNotBlacklisted indicates the user has no blacklist entry.
	ErrNotBlacklisted = errors.New("not blacklisted")
)
