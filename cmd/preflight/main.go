// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hamed0406/statuspulse/internal/config"
)

func main() {
	_ = godotenv.Load()

	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	apiAddr := strings.TrimSpace(os.Getenv("ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	allowed := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (admin routes are open).")
	}
	if pub == "" {
		warn("PUBLIC_API_KEYS is empty (read routes accept admin keys only, or anyone if ADMIN_API_KEYS is empty too).")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if apiAddr == "" {
		warn("ADDR is empty; 127.0.0.1:8080 will be used.")
	} else {
		ok("ADDR=" + apiAddr)
	}

	switch {
	case db != "":
		ok("DATABASE_URL present (postgres store)")
	case sqlitePath != "":
		ok("SQLITE_PATH=" + sqlitePath)
	default:
		warn("DATABASE_URL and SQLITE_PATH empty; history is lost on restart (in-memory store).")
	}

	if allowed == "" {
		warn("ALLOWED_ORIGINS empty; any origin may call the API.")
	} else {
		ok("ALLOWED_ORIGINS=" + allowed)
	}

	// numeric knobs: FromEnv silently falls back, so report bad values here
	for _, name := range []string{
		"TICK_INTERVAL_MS", "PROBE_TIMEOUT_MS", "RETRY_ATTEMPTS", "RETRY_BACKOFF_MS",
		"MAX_CONCURRENT_CHECKS", "DRAIN_TIMEOUT_MS",
		"PUBLIC_RPM", "PUBLIC_BURST", "ADMIN_RPM", "ADMIN_BURST",
	} {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err != nil || n < 0 {
			fail(name + "=" + v + " is not a non-negative integer.")
		}
	}

	if tz := strings.TrimSpace(os.Getenv("TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			fail("TIMEZONE=" + tz + " is unknown: " + err.Error())
		} else {
			ok("TIMEZONE=" + tz)
		}
	}

	if path := strings.TrimSpace(os.Getenv("TARGETS_FILE")); path != "" {
		if c, err := config.LoadCatalog(path); err != nil {
			fail("TARGETS_FILE: " + err.Error())
		} else {
			ok(fmt.Sprintf("TARGETS_FILE has %d targets", len(c.Targets)))
		}
	}

	if os.Getenv("WEBHOOK_URL") != "" && os.Getenv("WEBHOOK_SECRET") == "" {
		warn("WEBHOOK_URL set without WEBHOOK_SECRET; payloads will be unsigned.")
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
