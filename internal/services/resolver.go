package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/gymbridge/internal/cache"
	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/metrics"
	"github.com/dmitrijs2005/gymbridge/internal/registry"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultResolverTTL = 600 * time.Second
	resolverKeyPrefix  = "padron:dni:"
)

// MemberLookup is the registry by-dni endpoint.
type MemberLookup interface {
	GetByNationalID(ctx context.Context, dni string) (*registry.Member, error)
}

// cachedMember is the cache payload. Found=false is a negative entry.
type cachedMember struct {
	Found  bool             `json:"found"`
	Member *registry.Member `json:"member,omitempty"`
}

// ResolverService looks up single members in the registry. Results, including
// "not found", are cached for ttl when a cache is configured.
type ResolverService struct {
	lookup  MemberLookup
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  logging.Logger
}

// NewResolverService accepts a nil cache, which disables caching.
func NewResolverService(lookup MemberLookup, c cache.Cache, ttl time.Duration, mt *metrics.Metrics, logger logging.Logger) *ResolverService {
	if ttl <= 0 {
		ttl = DefaultResolverTTL
	}
	return &ResolverService{
		lookup:  lookup,
		cache:   c,
		ttl:     ttl,
		metrics: mt,
		logger:  logger.With("module", "resolver"),
	}
}

func resolverKey(dni string) string {
	return resolverKeyPrefix + dni
}

// Resolve returns the registry member for rawDNI, or nil when it is unknown or
// normalizes to nothing.
func (s *ResolverService) Resolve(ctx context.Context, rawDNI string) (*registry.Member, error) {
	dni := NormalizeNationalID(rawDNI)
	if dni == "" {
		return nil, nil
	}
	key := resolverKey(dni)

	if entry, ok := s.fromCache(ctx, key); ok {
		s.count("cache")
		return entry.Member, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		m, err := s.lookup.GetByNationalID(ctx, dni)
		if err != nil {
			return nil, err
		}
		s.count("registry")
		s.store(ctx, key, cachedMember{Found: m != nil, Member: m})
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*registry.Member), nil
}

// Cached reports whether a cache entry exists for rawDNI.
func (s *ResolverService) Cached(ctx context.Context, rawDNI string) bool {
	dni := NormalizeNationalID(rawDNI)
	if dni == "" || s.cache == nil {
		return false
	}
	ok, err := s.cache.Exists(ctx, resolverKey(dni))
	if err != nil {
		s.logger.Warn(ctx, "resolver cache check failed", "error", err)
		return false
	}
	return ok
}

func (s *ResolverService) fromCache(ctx context.Context, key string) (cachedMember, bool) {
	if s.cache == nil {
		return cachedMember{}, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn(ctx, "resolver cache read failed", "key", key, "error", err)
		}
		return cachedMember{}, false
	}
	var entry cachedMember
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn(ctx, "resolver cache entry corrupt", "key", key, "error", err)
		return cachedMember{}, false
	}
	return entry, true
}

func (s *ResolverService) store(ctx context.Context, key string, entry cachedMember) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn(ctx, "resolver cache write failed", "key", key, "error", err)
	}
}

func (s *ResolverService) count(source string) {
	if s.metrics != nil {
		s.metrics.RecordResolverLookup(source)
	}
}
