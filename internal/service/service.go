// Package service implements the key lifecycle engines: redemption of
// generated vouchers, per-launch device binding, and the administrative
// mutators that manage whitelist and blacklist membership.
package service

import (
	"time"

	"github.com/vorahub/keyserver/internal/audit"
	"github.com/vorahub/keyserver/internal/keylock"
	"github.com/vorahub/keyserver/internal/ownercache"
	"github.com/vorahub/keyserver/internal/security"
	"github.com/vorahub/keyserver/internal/store"
)

// Auditor receives best-effort audit events.
type Auditor interface {
	Log(event audit.Event)
}

// Dependencies wires the engines to their collaborators.
type Dependencies struct {
	Keys      *store.KeyStore
	Vouchers  *store.VoucherStore
	Whitelist *store.WhitelistStore
	Blacklist *store.BlacklistStore
	Cache     *ownercache.Cache
	Locks     *keylock.KeyLock
	Audit     Auditor
	KeyPrefix string
}

// Service exposes the key lifecycle operations.
type Service struct {
	keys      *store.KeyStore
	vouchers  *store.VoucherStore
	whitelist *store.WhitelistStore
	blacklist *store.BlacklistStore
	cache     *ownercache.Cache
	locks     *keylock.KeyLock
	audit     Auditor
	keyPrefix string
	now       func() time.Time
}

// New constructs a Service from its dependencies.
func New(deps Dependencies) *Service {
	prefix := deps.KeyPrefix
	if prefix == "" {
		prefix = security.DefaultKeyPrefix
	}
	locks := deps.Locks
	if locks == nil {
		locks = keylock.New()
	}
	return &Service{
		keys:      deps.Keys,
		vouchers:  deps.Vouchers,
		whitelist: deps.Whitelist,
		blacklist: deps.Blacklist,
		cache:     deps.Cache,
		locks:     locks,
		audit:     deps.Audit,
		keyPrefix: prefix,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) emit(title, executor, target, action, extra string) {
	if s.audit == nil {
		return
	}
	s.audit.Log(audit.Event{
		Title:    title,
		Executor: executor,
		Target:   target,
		Action:   action,
		Extra:    extra,
	})
}
