package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/rotisserie/eris"
)

// Validation modes, one per command.
const (
	ModeEnrich        = "enrich"
	ModeEnrichOffline = "enrich-offline"
	ModeDNC           = "dnc"
	ModeRuns          = "runs"
)

// Validate checks that the fields needed by mode are present and that
// numeric settings are in range.
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(val, key string) {
		if strings.TrimSpace(val) == "" {
			problems = append(problems, key+" is required")
		}
	}

	switch mode {
	case ModeEnrich:
		require(c.SkipTrace.Key, "skiptrace.key")
		require(c.Telnyx.Key, "telnyx.key")
		if c.DNC.Enabled {
			problems = append(problems, c.dncProblems()...)
		}
	case ModeEnrichOffline:
	case ModeDNC:
		problems = append(problems, c.dncProblems()...)
	case ModeRuns:
		if c.Store.Driver == "none" {
			problems = append(problems, "store.driver must not be none")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.CheckpointInterval < 1 {
		problems = append(problems, "batch.checkpoint_interval must be >= 1")
	}
	if c.RateLimit.MinDelayMs < 0 {
		problems = append(problems, "ratelimit.min_delay_ms must be >= 0")
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		problems = append(problems, "retry.max_attempts must be between 1 and 10")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
		require(c.Store.DatabaseURL, "store.database_url")
	case "none":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q must be sqlite, postgres or none", c.Store.Driver))
	}
	switch c.Output.Format {
	case "json", "csv":
	default:
		problems = append(problems, fmt.Sprintf("output.format %q must be json or csv", c.Output.Format))
	}
	if c.Output.S3.Bucket != "" {
		require(c.Output.S3.Endpoint, "output.s3.endpoint")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) dncProblems() []string {
	var out []string
	if strings.TrimSpace(c.DNC.BaseURL) == "" {
		out = append(out, "dnc.base_url is required")
	}
	if c.Token.Static == "" && (c.Token.RefreshToken == "" || c.Token.ClientID == "") {
		out = append(out, "token.static or token.refresh_token with token.client_id is required")
	}
	return out
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
