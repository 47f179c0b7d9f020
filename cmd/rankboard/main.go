package main

import (
	"os"
	"strings"

	"rankboard/internal/cli"
)

func isItemID(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "item-") {
		return false
	}
	return len(s) > len("item-")
}

// rewriteDirectItemLookupArgs turns `rankboard <item-id>` into
// `rankboard items show <item-id>`. Cobra treats the first non-flag token as a
// subcommand, so argv is rewritten before parsing. Persistent flags may come
// first, so this looks for the first positional token rather than argv[1].
func rewriteDirectItemLookupArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":    true,
		"--server": true,
		"--format": true,
		"--config": true,
	}
	boolFlags := map[string]bool{
		"--pretty":  true,
		"--verbose": true,
		"-v":        true,
	}

	show := func(prefix, rest []string) []string {
		out := make([]string, 0, len(prefix)+len(rest)+2)
		out = append(out, prefix...)
		out = append(out, "items", "show")
		return append(out, rest...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			// Everything after -- is positional; drop the marker so the
			// rewritten subcommand still parses.
			if i+1 < len(argv) && isItemID(argv[i+1]) {
				return show(argv[:i], argv[i+1:])
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}
		if isItemID(a) {
			return show(argv[:i], argv[i:])
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectItemLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
