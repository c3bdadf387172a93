package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modoterra/tln/pkg/config"
	"github.com/modoterra/tln/pkg/secret"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{"defaults", nil, options{configPath: config.DefaultPath}, false},
		{"version", []string{"version"}, options{version: true, configPath: config.DefaultPath}, false},
		{"config", []string{"--config", "/etc/tln.yaml"}, options{configPath: "/etc/tln.yaml"}, false},
		{"short config", []string{"-c", "x.yaml"}, options{configPath: "x.yaml"}, false},
		{"missing path", []string{"--config"}, options{}, true},
		{"unknown", []string{"--manifest"}, options{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseArgs() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Name = "edge-01"
	cfg.Socket = filepath.Join(t.TempDir(), "tlnd.sock")
	cfg.SendTimeout = 10 * time.Millisecond
	return cfg
}

func TestSetupLoadsPlugins(t *testing.T) {
	key, err := secret.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t)
	cfg.Key = key.Hex()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	d, box, err := setup(cfg, logger)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if box == nil {
		t.Fatal("expected a box for a configured key")
	}

	infos := d.Host().Plugins()
	if len(infos) != 2 {
		t.Fatalf("expected 2 plugins, got %+v", infos)
	}
	for _, info := range infos {
		if !info.Loaded {
			t.Errorf("%s not loaded", info.Name)
		}
	}

	ct, _ := box.Encrypt("hello")
	res, err := d.Host().Dispatch("logs", "add", ct)
	if err != nil || !res.OK() {
		t.Fatalf("add: %v %v", res, err)
	}
}

func TestSetupWithoutKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	d, box, err := setup(testConfig(t), logger)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if box != nil {
		t.Error("expected no box without a key")
	}
	res, err := d.Host().Dispatch("logs", "add", "anything")
	if err != nil {
		t.Fatal(err)
	}
	if res.OK() {
		t.Error("add without a key should fail")
	}
}

func TestSetupBadKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Key = "not-hex"
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if _, _, err := setup(cfg, logger); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestSourcesFeedLogsPlugin(t *testing.T) {
	key, err := secret.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	logPath := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(logPath, []byte("first\nsecond\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t)
	cfg.Key = key.Hex()
	cfg.Sources = []config.Source{{Kind: config.SourceFile, Path: logPath, FromStart: true}}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	d, box, err := setup(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startSources(ctx, cfg, d.Host(), box, logger)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, _ := d.Host().Status("logs"); strings.Contains(s, "second") {
			if !strings.Contains(s, ": first\n") {
				t.Errorf("status = %q", s)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timeout waiting for tailed lines")
}

func TestBuildSource(t *testing.T) {
	if src := buildSource(config.Source{Kind: config.SourceJournal, Unit: "sshd.service"}, nil); src == nil || src.Name() != "journald:sshd.service" {
		t.Errorf("journal source = %v", src)
	}
	if src := buildSource(config.Source{Kind: config.SourceFile, Path: "/var/log/syslog"}, nil); src == nil || src.Name() != "file:/var/log/syslog" {
		t.Errorf("file source = %v", src)
	}
	if src := buildSource(config.Source{Kind: "docker"}, nil); src != nil {
		t.Errorf("unknown kind should yield nil, got %v", src)
	}
}
