package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envVars = []string{
	"DAGTRACE_CONFIG", "DAGTRACE_GRAPH", "DAGTRACE_TRACE", "DAGTRACE_HTTP_ADDR",
	"DAGTRACE_AUTH_TOKEN", "DAGTRACE_NATS_URL", "DAGTRACE_S3_REGION", "DAGTRACE_S3_ENDPOINT",
	"DAGTRACE_WATCH", "DAGTRACE_WATCH_DEBOUNCE", "DAGTRACE_TIMEZONE",
}

// clearAllEnv empties every DAGTRACE_ variable and points the user config
// directory at an empty temp dir so the default file is never found.
func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dagtrace.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearAllEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %q, want %q", cfg.S3Region, "us-east-1")
	}
	if cfg.WatchDebounce != 200*time.Millisecond {
		t.Errorf("WatchDebounce = %v, want 200ms", cfg.WatchDebounce)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}
	if cfg.Watch {
		t.Error("Watch = true, want false")
	}
}

func TestLoad_Env(t *testing.T) {
	for _, tc := range []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, c *Config)
	}{
		{
			name: "Documents",
			env:  map[string]string{"DAGTRACE_GRAPH": "graph.json", "DAGTRACE_TRACE": "s3://bucket/running-0.json"},
			check: func(t *testing.T, c *Config) {
				if c.GraphURI != "graph.json" || c.TraceURI != "s3://bucket/running-0.json" {
					t.Errorf("GraphURI/TraceURI = %q/%q", c.GraphURI, c.TraceURI)
				}
			},
		},
		{
			name: "Server",
			env: map[string]string{
				"DAGTRACE_HTTP_ADDR":  ":3000",
				"DAGTRACE_AUTH_TOKEN": "secret",
				"DAGTRACE_NATS_URL":   "nats://localhost:4222",
			},
			check: func(t *testing.T, c *Config) {
				if c.HTTPAddr != ":3000" || c.AuthToken != "secret" || c.NATSURL != "nats://localhost:4222" {
					t.Errorf("got %+v", c)
				}
			},
		},
		{
			name: "Watch",
			env:  map[string]string{"DAGTRACE_WATCH": "true", "DAGTRACE_WATCH_DEBOUNCE": "1s"},
			check: func(t *testing.T, c *Config) {
				if !c.Watch || c.WatchDebounce != time.Second {
					t.Errorf("Watch/WatchDebounce = %v/%v", c.Watch, c.WatchDebounce)
				}
			},
		},
		{
			name: "Timezone",
			env:  map[string]string{"DAGTRACE_TIMEZONE": "Asia/Shanghai"},
			check: func(t *testing.T, c *Config) {
				if c.Location.String() != "Asia/Shanghai" {
					t.Errorf("Location = %v", c.Location)
				}
			},
		},
		{name: "BadWatch", env: map[string]string{"DAGTRACE_WATCH": "sometimes"}, wantErr: true},
		{name: "BadDebounce", env: map[string]string{"DAGTRACE_WATCH_DEBOUNCE": "soon"}, wantErr: true},
		{name: "NegativeDebounce", env: map[string]string{"DAGTRACE_WATCH_DEBOUNCE": "-1s"}, wantErr: true},
		{name: "BadTimezone", env: map[string]string{"DAGTRACE_TIMEZONE": "Mars/Olympus"}, wantErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.check(t, cfg)
		})
	}
}

func TestLoad_File(t *testing.T) {
	clearAllEnv(t)
	path := writeConfig(t, `
graph = "/data/graph.json"
trace = "/data/running-0.json"
http_addr = ":9999"
watch = true
debounce = "50ms"
s3_endpoint = "http://minio:9000"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GraphURI != "/data/graph.json" || cfg.TraceURI != "/data/running-0.json" {
		t.Errorf("GraphURI/TraceURI = %q/%q", cfg.GraphURI, cfg.TraceURI)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if !cfg.Watch || cfg.WatchDebounce != 50*time.Millisecond {
		t.Errorf("Watch/WatchDebounce = %v/%v", cfg.Watch, cfg.WatchDebounce)
	}
	if cfg.S3Endpoint != "http://minio:9000" {
		t.Errorf("S3Endpoint = %q", cfg.S3Endpoint)
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %q, want default", cfg.S3Region)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearAllEnv(t)
	path := writeConfig(t, `http_addr = ":9999"`+"\n"+`trace = "file.json"`)
	t.Setenv("DAGTRACE_CONFIG", path)
	t.Setenv("DAGTRACE_HTTP_ADDR", ":7777")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":7777" {
		t.Errorf("HTTPAddr = %q, want env value", cfg.HTTPAddr)
	}
	if cfg.TraceURI != "file.json" {
		t.Errorf("TraceURI = %q, want file value", cfg.TraceURI)
	}
}

func TestLoad_DefaultPath(t *testing.T) {
	clearAllEnv(t)
	p, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(`nats_url = "nats://bus:4222"`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NATSURL != "nats://bus:4222" {
		t.Errorf("NATSURL = %q", cfg.NATSURL)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	clearAllEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for explicitly named missing file")
	}
	if _, err := Load(writeConfig(t, `graph = [`)); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestRequireDocuments(t *testing.T) {
	for _, tc := range []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"Both", Config{GraphURI: "g", TraceURI: "t"}, false},
		{"NoGraph", Config{TraceURI: "t"}, true},
		{"NoTrace", Config{GraphURI: "g"}, true},
		{"Neither", Config{}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.RequireDocuments()
			if (err != nil) != tc.wantErr {
				t.Errorf("RequireDocuments() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
