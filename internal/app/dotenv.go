package app

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// loadDotenv exports KEY=VALUE pairs from path into the process
// environment and reports how many were set. Variables that already have
// a non-empty value win over the file.
func loadDotenv(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	set := 0
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		key, val, skip, err := parseDotenvLine(sc.Text())
		if err != nil {
			return set, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		if skip {
			continue
		}
		if cur, ok := os.LookupEnv(key); ok && cur != "" {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return set, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		set++
	}
	return set, sc.Err()
}

func parseDotenvLine(raw string) (key, val string, skip bool, err error) {
	line := strings.TrimSpace(raw)
	if line == "" || line[0] == '#' {
		return "", "", true, nil
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false, fmt.Errorf("missing '='")
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false, fmt.Errorf("invalid key %q", key)
	}

	val = strings.TrimSpace(val)
	switch {
	case len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"':
		u, uerr := strconv.Unquote(val)
		if uerr != nil {
			return "", "", false, uerr
		}
		val = u
	case len(val) >= 2 && val[0] == '\'' && val[len(val)-1] == '\'':
		val = val[1 : len(val)-1]
	default:
		// unquoted: " #" starts a comment
		if i := strings.Index(val, " #"); i >= 0 {
			val = strings.TrimSpace(val[:i])
		}
	}
	return key, val, false, nil
}
