package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/pflag"
)

func flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("dir", "", "")
	fs.String("server", "", "")
	fs.String("listen", "", "")
	fs.String("format", "", "")
	fs.Bool("pretty", false, "")
	fs.Bool("verbose", false, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := &Config{Listen: DefaultListen, Format: DefaultFormat}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("defaults (-want +got):\n%s", diff)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	body := "dir: /from/file\nlisten: file:1\nformat: table\npretty: true\n"
	if err := os.WriteFile(filepath.Join(dir, "rankboard.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("RANKBOARD_LISTEN", "env:2")
	t.Setenv("RANKBOARD_SERVER", "http://env")

	fs := flagSet()
	if err := fs.Parse([]string{"--server", "http://flag", "--verbose"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := &Config{
		Dir:     "/from/file",
		Server:  "http://flag",
		Listen:  "env:2",
		Format:  "table",
		Pretty:  true,
		Verbose: true,
	}
	if diff := cmp.Diff(want, cfg, cmpopts.IgnoreFields(Config{}, "File")); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
	if cfg.File != "rankboard.yaml" {
		t.Fatalf("expected rankboard.yaml to be used, got %q", cfg.File)
	}
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RANKBOARD_FORMAT", "table")
	fs := flagSet()
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Format != "table" {
		t.Fatalf("expected env format to survive unset flag, got %q", cfg.Format)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("missing.yaml", nil); err == nil {
		t.Fatalf("expected error for missing explicit file")
	}
	t.Setenv("RANKBOARD_FORMAT", "edn")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
