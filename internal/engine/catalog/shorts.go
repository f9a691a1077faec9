package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"golang.org/x/sync/errgroup"
)

// Verdict is the short-form classification of one video.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictShort
	VerdictNotShort
)

func (v Verdict) String() string {
	switch v {
	case VerdictShort:
		return "short"
	case VerdictNotShort:
		return "not-short"
	default:
		return "unknown"
	}
}

func verdictOf(isShort bool) Verdict {
	if isShort {
		return VerdictShort
	}
	return VerdictNotShort
}

// preVerdict is the free first layer. Long videos cannot be shorts, and a
// zero duration with views is a live broadcast.
func preVerdict(v engine.VideoItem, threshold time.Duration) Verdict {
	d := time.Duration(v.DurationSeconds) * time.Second
	if d > threshold {
		return VerdictNotShort
	}
	if d == 0 && v.ViewCount > 0 {
		return VerdictNotShort
	}
	return VerdictUnknown
}

// FilterShorts removes short-form videos and keeps the rest in their original
// order. Classification escalates from duration to cached verdicts (L1, then
// one batched L2 lookup) to bounded-concurrency probes. A probe that times out
// or errors keeps the video and caches nothing, so the next call asks again.
func (s *Service) FilterShorts(ctx context.Context, videos []engine.VideoItem) []engine.VideoItem {
	verdicts := s.classify(ctx, videos)

	out := make([]engine.VideoItem, 0, len(videos))
	for _, v := range videos {
		if verdicts[v.ID] == VerdictShort {
			continue
		}
		out = append(out, v)
	}
	if n := len(videos) - len(out); n > 0 {
		engine.AddShortsFiltered(n)
	}
	return out
}

// classify returns a verdict for every video id; unknown ids map to VerdictUnknown.
func (s *Service) classify(ctx context.Context, videos []engine.VideoItem) map[string]Verdict {
	verdicts := make(map[string]Verdict, len(videos))
	var candidates []string
	for _, v := range videos {
		if v.ID == "" {
			continue
		}
		if _, done := verdicts[v.ID]; done {
			continue
		}
		pv := preVerdict(v, s.cfg.ShortThreshold)
		verdicts[v.ID] = pv
		if pv == VerdictUnknown {
			candidates = append(candidates, v.ID)
		}
	}
	if len(candidates) == 0 {
		return verdicts
	}

	cached := engine.LoadManyJSON[bool](ctx, s.verdicts, candidates, s.cfg.VerdictTTL)
	var unresolved []string
	for _, id := range candidates {
		if isShort, ok := cached[id]; ok {
			verdicts[id] = verdictOf(isShort)
			continue
		}
		unresolved = append(unresolved, id)
	}
	if len(unresolved) == 0 || s.prober == nil {
		return verdicts
	}

	for id, v := range s.probeAll(ctx, unresolved) {
		verdicts[id] = v
	}
	return verdicts
}

// probeAll probes ids with at most ProbeConcurrency requests in flight, each
// under its own ProbeTimeout. Only conclusive results are returned and cached.
func (s *Service) probeAll(ctx context.Context, ids []string) map[string]Verdict {
	var (
		mu  sync.Mutex
		out = make(map[string]Verdict, len(ids))
		g   errgroup.Group
	)
	g.SetLimit(s.cfg.ProbeConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return nil
				}
			}
			pctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
			defer cancel()

			engine.IncrProbes()
			isShort, err := s.prober.Probe(pctx, id)
			if err != nil {
				engine.IncrProbeErrors()
				slog.Debug("shorts: probe failed, keeping video",
					slog.String("id", id), slog.Any("error", err))
				return nil
			}
			engine.StoreJSON(ctx, s.verdicts, id, isShort, s.cfg.VerdictTTL)
			mu.Lock()
			out[id] = verdictOf(isShort)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
