package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUnitContents(t *testing.T) {
	got := UnitContents("/usr/local/bin/tlnd", "/etc/tln/tln.yaml")

	checks := []string{
		"[Unit]",
		"ExecStart=/usr/local/bin/tlnd --config /etc/tln/tln.yaml",
		"Type=simple",
		"Restart=on-failure",
		"Environment=TLN_JOURNAL=true",
		"[Install]",
		"WantedBy=default.target",
	}
	for _, want := range checks {
		if !strings.Contains(got, want) {
			t.Errorf("unit file missing %q:\n%s", want, got)
		}
	}
}

func TestUnitContentsWithoutConfig(t *testing.T) {
	got := UnitContents("/usr/local/bin/tlnd", "")
	if strings.Contains(got, "--config") {
		t.Errorf("unexpected --config flag:\n%s", got)
	}
	if !strings.Contains(got, "ExecStart=/usr/local/bin/tlnd\n") {
		t.Errorf("unit file missing bare ExecStart:\n%s", got)
	}
}

func TestUnitPath(t *testing.T) {
	path, err := UnitPath()
	if err != nil {
		t.Fatalf("UnitPath() error: %v", err)
	}
	if !strings.HasSuffix(path, "systemd/user/tlnd.service") {
		t.Errorf("UnitPath() = %q, want suffix systemd/user/tlnd.service", path)
	}
}

func TestStatusNoSocket(t *testing.T) {
	got := Status(context.Background(), filepath.Join(t.TempDir(), "missing.sock"))
	if !strings.Contains(got, "socket: inactive") {
		t.Errorf("Status() should report inactive socket, got: %s", got)
	}
}

func TestStatusWithSocket(t *testing.T) {
	// A regular file stands in for the socket.
	sock := filepath.Join(t.TempDir(), "tlnd.sock")
	if err := os.WriteFile(sock, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	got := Status(context.Background(), sock)
	if !strings.Contains(got, "socket: active") {
		t.Errorf("Status() should report active socket, got: %s", got)
	}
}
