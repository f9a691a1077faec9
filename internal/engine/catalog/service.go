// Package catalog is the read side of the video platform: entity hydration,
// search and listings, short-form filtering and the merged subscription feed.
// Everything upstream goes through engine.Gateway; everything repeated goes
// through engine.TieredCache.
package catalog

import (
	"context"
	"net/url"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"golang.org/x/time/rate"
)

// Caller is the slice of engine.Gateway the catalog depends on.
type Caller interface {
	Call(ctx context.Context, endpoint string, params url.Values, credential string) ([]byte, error)
}

// Service is the downstream interface used by the tool layer.
type Service struct {
	gw       Caller
	cache    *engine.TieredCache
	public   *engine.Cache
	verdicts *engine.Cache
	meta     *engine.Cache
	prober   Prober
	quota    *engine.QuotaBreaker
	limiter  *rate.Limiter // nil = probes unpaced
	cfg      engine.Config
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Gateway Caller
	Cache   *engine.TieredCache
	Prober  Prober
	Quota   *engine.QuotaBreaker // optional, only read by QuotaStatus
}

// New builds a Service. cfg is completed with engine defaults.
func New(d Deps, cfg engine.Config) *Service {
	cfg = cfg.WithDefaults()
	s := &Service{
		gw:       d.Gateway,
		cache:    d.Cache,
		public:   d.Cache.Namespace("pub"),
		verdicts: d.Cache.Namespace("short"),
		meta:     d.Cache.Namespace("meta"),
		prober:   d.Prober,
		quota:    d.Quota,
		cfg:      cfg,
	}
	if cfg.ProbeRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ProbeRate), cfg.ProbeConcurrency)
	}
	return s
}

// ns returns the cache namespace for a caller. Anonymous calls share the
// public namespace; authenticated calls get one namespace per credential.
func (s *Service) ns(credential string) *engine.Cache {
	if credential == "" {
		return s.public
	}
	return s.cache.Namespace("user:" + engine.CredentialHash(credential))
}

// QuotaStatus reports whether the upstream quota is exhausted and for how long.
func (s *Service) QuotaStatus() engine.QuotaStatus {
	if s.quota == nil {
		return engine.QuotaStatus{}
	}
	resetAt, open := s.quota.ResetAt()
	if !open {
		return engine.QuotaStatus{}
	}
	return engine.QuotaStatus{
		Exhausted:      true,
		ResetAt:        resetAt,
		SecondsToReset: int64(resetAt.Sub(s.quota.Now()) / time.Second),
	}
}
