package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/geo"
	"github.com/sells-group/lead-enricher/internal/resilience"
	"github.com/sells-group/lead-enricher/internal/sink"
	"github.com/sells-group/lead-enricher/internal/store"
	"github.com/sells-group/lead-enricher/pkg/apiclient"
	"github.com/sells-group/lead-enricher/pkg/dnc"
	"github.com/sells-group/lead-enricher/pkg/skiptrace"
	"github.com/sells-group/lead-enricher/pkg/telnyx"
	"github.com/sells-group/lead-enricher/pkg/token"
)

// enrichEnv holds the initialized clients, store and pipeline shared by the
// enrich, dnc and dlq commands.
type enrichEnv struct {
	Store    store.Store // may be nil
	API      *apiclient.Client
	Limiter  *apiclient.RateLimiter
	Pipeline *enrich.Pipeline
	DNC      *enrich.DNCChecker // may be nil
	Tally    *cost.Tally
	Offline  bool
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// envOptions selects how initEnv builds the environment.
type envOptions struct {
	Offline bool
	DNC     bool
	Store   bool
}

// initEnv sets up the store, provider clients and pipeline. Callers should
// defer env.Close().
func initEnv(ctx context.Context, opts envOptions) (*enrichEnv, error) {
	env := &enrichEnv{Offline: opts.Offline}

	if opts.Store {
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open store")
		}
		env.Store = st
	}

	env.Limiter = apiclient.NewRateLimiter(time.Duration(cfg.RateLimit.MinDelayMs) * time.Millisecond)
	env.API = newAPIClient(cfg, env.Limiter)

	calc := cost.NewCalculator(cfg.Pricing)
	env.Tally = cost.NewTally(calc)

	var (
		st skiptrace.Client
		tx telnyx.Client
	)
	if opts.Offline {
		zap.L().Warn("offline mode: using deterministic stub providers")
		st = &enrich.StubSkipTracer{}
		tx = &enrich.StubTelnyx{}
	} else {
		st = skiptrace.NewClient(cfg.SkipTrace.Key, env.API,
			skiptrace.WithBaseURL(cfg.SkipTrace.BaseURL),
			skiptrace.WithHost(cfg.SkipTrace.Host),
		)
		tx = telnyx.NewClient(cfg.Telnyx.Key, env.API, telnyx.WithBaseURL(cfg.Telnyx.BaseURL))
	}

	if cfg.Cache.Enabled && env.Store != nil && !opts.Offline {
		ttl := time.Duration(cfg.Cache.LookupTTLHours) * time.Hour
		st = enrich.NewCachedSkipTracer(st, env.Store, ttl)
		zap.L().Info("skip-trace lookup cache enabled", zap.Duration("ttl", ttl))
	}

	if opts.DNC {
		env.DNC = newDNCChecker(cfg, env.API, opts.Offline)
	}

	zips, err := loadZipIndex(cfg.Geo)
	if err != nil {
		env.Close()
		return nil, err
	}

	gate, err := loadGatekeeper(cfg.Gatekeep)
	if err != nil {
		env.Close()
		return nil, err
	}

	pipeOpts := []enrich.Option{
		enrich.WithZipIndex(zips),
		enrich.WithGatekeeper(gate),
		enrich.WithCost(calc, env.Tally),
	}
	if env.DNC != nil {
		pipeOpts = append(pipeOpts, enrich.WithDNC(env.DNC))
	}
	env.Pipeline = enrich.New(st, tx, pipeOpts...)

	zap.L().Info("enrichment environment ready",
		zap.Bool("offline", opts.Offline),
		zap.Bool("dnc", env.DNC != nil),
		zap.Bool("store", env.Store != nil),
		zap.Int("zip_entries", zips.Len()),
		zap.Strings("deny_carriers", gate.DenyList()),
	)
	return env, nil
}

// newAPIClient builds the shared rate-limited provider client.
func newAPIClient(c *config.Config, limiter *apiclient.RateLimiter) *apiclient.Client {
	opts := []apiclient.Option{
		apiclient.WithTimeout(time.Duration(c.RateLimit.TimeoutSecs) * time.Second),
		apiclient.WithRetry(resilience.FromRetryConfig(
			c.Retry.MaxAttempts,
			c.Retry.InitialBackoffMs,
			c.Retry.MaxBackoffMs,
			c.Retry.Multiplier,
			c.Retry.JitterFraction,
		)),
	}
	if c.Circuit.Enabled {
		opts = append(opts, apiclient.WithBreakers(resilience.NewBreakers(
			resilience.FromBreakerConfig(c.Circuit.FailureThreshold, c.Circuit.CooldownSecs),
		)))
	}
	return apiclient.New(limiter, opts...)
}

// newDNCChecker builds the DNC client and its token source.
func newDNCChecker(c *config.Config, api *apiclient.Client, offline bool) *enrich.DNCChecker {
	if offline {
		return enrich.NewDNCChecker(&enrich.StubDNC{}, token.Static("offline"))
	}
	client := dnc.NewClient(c.DNC.BaseURL, api, dnc.WithAgentNumber(c.DNC.AgentNumber))
	return enrich.NewDNCChecker(client, newTokenProvider(c.Token))
}

// newTokenProvider returns a static token when configured, otherwise a
// cached Cognito refresher. It returns nil when neither is configured.
func newTokenProvider(c config.TokenConfig) token.Provider {
	if c.Static != "" {
		return token.Static(c.Static)
	}
	if c.RefreshToken == "" || c.ClientID == "" {
		zap.L().Warn("no dnc token configured, dnc checks will be skipped")
		return nil
	}
	// Token refreshes are not provider calls; they bypass the shared limiter.
	refresher := token.NewCognitoRefresher(apiclient.New(nil), c.Region, c.Endpoint, c.ClientID, c.RefreshToken)
	return token.NewCached(refresher, token.WithSkew(time.Duration(c.RefreshSkewSecs)*time.Second))
}

// loadZipIndex returns the seeded ZIP index plus any configured CSV.
func loadZipIndex(c config.GeoConfig) (*geo.ZipIndex, error) {
	zips, err := geo.NewZipIndex()
	if err != nil {
		return nil, err
	}
	if c.ZipCSV != "" {
		if err := zips.LoadFile(c.ZipCSV); err != nil {
			return nil, eris.Wrap(err, "load zip csv")
		}
	}
	return zips, nil
}

// loadGatekeeper merges the policy file and config deny fragments with the
// built-in deny list.
func loadGatekeeper(c config.GatekeepConfig) (*enrich.Gatekeeper, error) {
	extra := append([]string(nil), c.ExtraDeny...)
	if c.PolicyFile != "" {
		policy, err := enrich.LoadGatePolicy(c.PolicyFile)
		if err != nil {
			return nil, err
		}
		extra = append(extra, policy.DenyCarriers...)
	}
	return enrich.NewGatekeeper(extra...), nil
}

// buildExtraSinks returns the configured S3 and Kafka sinks and a function
// that closes them.
func buildExtraSinks(c config.OutputConfig) (sink.Multi, func(), error) {
	var (
		sinks  sink.Multi
		kafkas []*sink.KafkaSink
	)
	closeAll := func() {
		for _, k := range kafkas {
			if err := k.Close(); err != nil {
				zap.L().Warn("close kafka sink", zap.Error(err))
			}
		}
	}

	if c.S3.Bucket != "" {
		s3, err := sink.NewS3Sink(sink.S3Options{
			Endpoint:  c.S3.Endpoint,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Region:    c.S3.Region,
			UseSSL:    c.S3.UseSSL,
			Bucket:    c.S3.Bucket,
			Prefix:    c.S3.Prefix,
		})
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, s3)
	}
	if len(c.Kafka.Brokers) > 0 {
		k := sink.NewKafkaSink(c.Kafka.Brokers, c.Kafka.Topic)
		kafkas = append(kafkas, k)
		sinks = append(sinks, k)
	}
	return sinks, closeAll, nil
}
