package app

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDotenv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	return path
}

func TestLoadDotenv_SetsVars(t *testing.T) {
	path := writeDotenv(t, `
# local broker
NS_ADDR=127.0.0.1:9876 # default cluster
export AK="rocketmq2"
SK='12345 678'
`)
	t.Setenv("NS_ADDR", "")
	t.Setenv("AK", "")
	t.Setenv("SK", "")

	n, err := loadDotenv(path)
	if err != nil {
		t.Fatalf("loadDotenv: %v", err)
	}
	if n != 3 {
		t.Fatalf("set %d vars, want 3", n)
	}
	if got := os.Getenv("NS_ADDR"); got != "127.0.0.1:9876" {
		t.Fatalf("NS_ADDR=%q", got)
	}
	if got := os.Getenv("AK"); got != "rocketmq2" {
		t.Fatalf("AK=%q", got)
	}
	if got := os.Getenv("SK"); got != "12345 678" {
		t.Fatalf("SK=%q", got)
	}
}

func TestLoadDotenv_DoesNotOverrideNonEmpty(t *testing.T) {
	path := writeDotenv(t, "MCP_READ_ONLY=false\n")
	t.Setenv("MCP_READ_ONLY", "true")

	n, err := loadDotenv(path)
	if err != nil {
		t.Fatalf("loadDotenv: %v", err)
	}
	if n != 0 {
		t.Fatalf("set %d vars, want 0", n)
	}
	if got := os.Getenv("MCP_READ_ONLY"); got != "true" {
		t.Fatalf("MCP_READ_ONLY=%q, want true", got)
	}
}

func TestLoadDotenv_InvalidLine(t *testing.T) {
	for _, body := range []string{"NOEQUALS\n", "=value\n", "BAD KEY=1\n", "Q=\"unterminated\\\"\n"} {
		if _, err := loadDotenv(writeDotenv(t, body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}

func TestLoadDotenv_Missing(t *testing.T) {
	if _, err := loadDotenv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
