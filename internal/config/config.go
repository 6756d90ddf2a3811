package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is read from an optional TOML file and then overridden by
// environment variables.
type Config struct {
	GraphURI   string `toml:"graph"`       // DAGTRACE_GRAPH (file path or s3://bucket/key)
	TraceURI   string `toml:"trace"`       // DAGTRACE_TRACE (file path or s3://bucket/key)
	HTTPAddr   string `toml:"http_addr"`   // DAGTRACE_HTTP_ADDR (default ":8080")
	AuthToken  string `toml:"auth_token"`  // DAGTRACE_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL    string `toml:"nats_url"`    // DAGTRACE_NATS_URL (optional, empty = no events)
	S3Region   string `toml:"s3_region"`   // DAGTRACE_S3_REGION (default "us-east-1")
	S3Endpoint string `toml:"s3_endpoint"` // DAGTRACE_S3_ENDPOINT (custom endpoint for MinIO)
	Watch      bool   `toml:"watch"`       // DAGTRACE_WATCH (reload local documents on change)
	Debounce   string `toml:"debounce"`    // DAGTRACE_WATCH_DEBOUNCE (default "200ms")
	Timezone   string `toml:"timezone"`    // DAGTRACE_TIMEZONE (default "UTC")

	// Resolved from the fields above by Load.
	WatchDebounce time.Duration  `toml:"-"`
	Location      *time.Location `toml:"-"`
}

// DefaultPath returns the config file consulted when neither --config nor
// DAGTRACE_CONFIG is given.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dagtrace", "config.toml"), nil
}

// Load builds the configuration. path names a TOML file; when empty,
// DAGTRACE_CONFIG and then DefaultPath are tried. A missing file is only an
// error when it was named explicitly.
func Load(path string) (*Config, error) {
	c := &Config{
		HTTPAddr: ":8080",
		S3Region: "us-east-1",
		Debounce: "200ms",
		Timezone: "UTC",
	}

	explicit := true
	if path == "" {
		path = os.Getenv("DAGTRACE_CONFIG")
	}
	if path == "" {
		explicit = false
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			if !errors.Is(err, os.ErrNotExist) || explicit {
				return nil, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}

	overrideString(&c.GraphURI, "DAGTRACE_GRAPH")
	overrideString(&c.TraceURI, "DAGTRACE_TRACE")
	overrideString(&c.HTTPAddr, "DAGTRACE_HTTP_ADDR")
	overrideString(&c.AuthToken, "DAGTRACE_AUTH_TOKEN")
	overrideString(&c.NATSURL, "DAGTRACE_NATS_URL")
	overrideString(&c.S3Region, "DAGTRACE_S3_REGION")
	overrideString(&c.S3Endpoint, "DAGTRACE_S3_ENDPOINT")
	overrideString(&c.Debounce, "DAGTRACE_WATCH_DEBOUNCE")
	overrideString(&c.Timezone, "DAGTRACE_TIMEZONE")
	if v := os.Getenv("DAGTRACE_WATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("DAGTRACE_WATCH: %w", err)
		}
		c.Watch = b
	}

	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return nil, fmt.Errorf("DAGTRACE_WATCH_DEBOUNCE: %w", err)
	}
	if d < 0 {
		return nil, fmt.Errorf("DAGTRACE_WATCH_DEBOUNCE: negative duration %s", d)
	}
	c.WatchDebounce = d

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("DAGTRACE_TIMEZONE: %w", err)
	}
	c.Location = loc

	return c, nil
}

// RequireDocuments reports an error unless both documents are configured.
func (c *Config) RequireDocuments() error {
	switch {
	case c.GraphURI == "" && c.TraceURI == "":
		return fmt.Errorf("graph and trace documents are required (--graph/--trace or DAGTRACE_GRAPH/DAGTRACE_TRACE)")
	case c.GraphURI == "":
		return fmt.Errorf("graph document is required (--graph or DAGTRACE_GRAPH)")
	case c.TraceURI == "":
		return fmt.Errorf("trace document is required (--trace or DAGTRACE_TRACE)")
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
