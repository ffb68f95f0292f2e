package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/lexsim/pkg/artifacts"
	"github.com/Mindburn-Labs/lexsim/pkg/cache"
	"github.com/Mindburn-Labs/lexsim/pkg/engine"
	"github.com/Mindburn-Labs/lexsim/pkg/observability"
	"github.com/Mindburn-Labs/lexsim/pkg/report"
	"github.com/Mindburn-Labs/lexsim/pkg/scenario"
	"github.com/Mindburn-Labs/lexsim/pkg/store"
)

// Run modes recorded in the archive.
const (
	modeStandard    = "standard"
	modeProjection  = "projection"
	modeRetroactive = "retroactive"
	modeBaseline    = "what_if_baseline"
	modeAlternative = "what_if_alternative"
)

// outputOptions control what happens to a finished run.
type outputOptions struct {
	archive string
	publish bool
	attest  bool
	noCache bool
}

// result is a completed run ready for output.
type result struct {
	ID        string
	Mode      string
	Scenario  *scenario.Scenario
	Doc       *report.Document
	Canonical []byte
	Report    string
	Cached    bool
}

type runOutput struct {
	RunID       string             `json:"run_id"`
	Scenario    string             `json:"scenario"`
	Mode        string             `json:"mode"`
	Digest      string             `json:"digest"`
	Cached      bool               `json:"cached"`
	Document    json.RawMessage    `json:"document"`
	Attestation string             `json:"attestation,omitempty"`
	Receipt     *artifacts.Receipt `json:"receipt,omitempty"`
}

type cachedRun struct {
	Report   string          `json:"report"`
	Document json.RawMessage `json:"document"`
}

// build assembles an engine for scen. The returned func flushes telemetry.
func (a *app) build(ctx context.Context, scen *scenario.Scenario, parallel int) (*engine.Engine, func(), error) {
	obs := observability.Disabled()
	if a.cfg.OTel.Enabled {
		p, err := observability.New(ctx, a.cfg.Observability(version))
		if err != nil {
			return nil, nil, fmt.Errorf("init observability: %w", err)
		}
		obs = p
	}
	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(sctx)
	}

	eng, err := scen.Builder().
		Logger(a.logger).
		Observability(obs).
		Parallelism(parallel).
		Build()
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	return eng, shutdown, nil
}

// resultCache returns the shared result cache, or nil when no Redis address
// is configured. Results outlive the process only in Redis.
func (a *app) resultCache() cache.Cache {
	if a.cache == nil && a.cfg.Cache.RedisAddr != "" {
		c := a.cfg.Cache
		a.cache = cache.NewRedis(c.RedisAddr, c.RedisPassword, c.RedisDB)
	}
	return a.cache
}

// complete renders m into a result.
func complete(mode string, scen *scenario.Scenario, m *engine.TemporalMetrics) (*result, error) {
	doc := report.NewDocument(m)
	canonical, err := doc.Canonical()
	if err != nil {
		return nil, err
	}
	var text bytes.Buffer
	if err := report.Render(&text, m); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return &result{
		ID:        uuid.NewString(),
		Mode:      mode,
		Scenario:  scen,
		Doc:       doc,
		Canonical: canonical,
		Report:    text.String(),
	}, nil
}

// cachedOrRun serves a scenario run from the result cache when possible.
func (a *app) cachedOrRun(ctx context.Context, mode string, scen *scenario.Scenario, noCache bool, run func() (*engine.TemporalMetrics, error)) (*result, error) {
	key := scen.Digest() + "|" + mode

	var c cache.Cache
	if !noCache {
		c = a.resultCache()
		if c == nil {
			a.logger.DebugContext(ctx, "result cache disabled", "reason", "LEXSIM_CACHE_REDIS_ADDR not set")
		}
	}
	if c != nil {
		raw, err := c.Get(ctx, key)
		switch {
		case err == nil:
			res, derr := decodeCached(mode, scen, raw)
			if derr == nil {
				a.logger.InfoContext(ctx, "result served from cache", "scenario", scen.Doc.Name, "mode", mode)
				return res, nil
			}
			a.logger.WarnContext(ctx, "discarding unreadable cache entry", "error", derr)
		case errors.Is(err, cache.ErrMiss):
		default:
			a.logger.WarnContext(ctx, "cache unavailable", "error", err)
		}
	}

	m, err := run()
	if err != nil {
		return nil, err
	}
	res, err := complete(mode, scen, m)
	if err != nil {
		return nil, err
	}

	if c != nil {
		entry, err := json.Marshal(cachedRun{Report: res.Report, Document: res.Canonical})
		if err == nil {
			err = c.Set(ctx, key, entry, a.cfg.Cache.TTL)
		}
		if err != nil {
			a.logger.WarnContext(ctx, "cache write failed", "error", err)
		}
	}
	return res, nil
}

func decodeCached(mode string, scen *scenario.Scenario, raw []byte) (*result, error) {
	var entry cachedRun
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	var doc report.Document
	if err := json.Unmarshal(entry.Document, &doc); err != nil {
		return nil, err
	}
	return &result{
		ID:        uuid.NewString(),
		Mode:      mode,
		Scenario:  scen,
		Doc:       &doc,
		Canonical: entry.Document,
		Report:    entry.Report,
		Cached:    true,
	}, nil
}

// finish archives, publishes and attests res as requested, then prints it.
func (a *app) finish(ctx context.Context, res *result, opts outputOptions, jsonOut bool) error {
	digest, err := res.Doc.Digest()
	if err != nil {
		return err
	}
	out := runOutput{
		RunID:    res.ID,
		Scenario: res.Scenario.Doc.Name,
		Mode:     res.Mode,
		Digest:   digest,
		Cached:   res.Cached,
		Document: res.Canonical,
	}

	if opts.archive != "" {
		if err := a.archive(ctx, opts.archive, res); err != nil {
			return err
		}
	}

	if opts.publish {
		st, err := artifacts.NewStore(ctx, a.cfg.ArtifactStore())
		if err != nil {
			return fmt.Errorf("open artifact store: %w", err)
		}
		pub := artifacts.NewPublisher(st, a.cfg.Artifacts.PublishRPS, a.cfg.Artifacts.PublishBurst, a.logger)
		receipt, err := pub.Publish(ctx, res.ID, []byte(res.Report), res.Canonical)
		if err != nil {
			return err
		}
		out.Receipt = &receipt
	}

	if opts.attest {
		if a.cfg.AttestSecret == "" {
			return errors.New("--attest requires LEXSIM_ATTEST_SECRET")
		}
		token, err := report.Attest(res.Doc, []byte(a.cfg.AttestSecret), res.ID, a.now())
		if err != nil {
			return err
		}
		out.Attestation = token
	}

	if jsonOut {
		return json.NewEncoder(a.stdout).Encode(out)
	}

	fmt.Fprint(a.stdout, res.Report)
	fmt.Fprintf(a.stdout, "\nRun: %s (%s)\nDigest: %s\n", out.RunID, out.Mode, out.Digest)
	if out.Cached {
		fmt.Fprintln(a.stdout, "Served from cache")
	}
	if out.Receipt != nil {
		fmt.Fprintf(a.stdout, "Published report %s\nPublished document %s\n", out.Receipt.Report, out.Receipt.Document)
	}
	if out.Attestation != "" {
		fmt.Fprintf(a.stdout, "Attestation: %s\n", out.Attestation)
	}
	return nil
}

func (a *app) archive(ctx context.Context, dsn string, results ...*result) error {
	s, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	for _, res := range results {
		run := store.Run{
			ID:        res.ID,
			Scenario:  res.Scenario.Doc.Name,
			Digest:    res.Scenario.Digest(),
			Mode:      res.Mode,
			Start:     res.Scenario.Start(),
			End:       res.Scenario.End(),
			Step:      res.Scenario.Step().String(),
			CreatedAt: a.now(),
			Counts:    res.Doc.Cumulative.Counts,
			Document:  res.Canonical,
		}
		if err := s.SaveRun(ctx, run, res.Doc); err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "run archived", "run_id", res.ID, "mode", res.Mode)
	}
	return nil
}
