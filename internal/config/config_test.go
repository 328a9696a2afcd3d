package config

import "testing"

func TestUserAgent(t *testing.T) {
	cfg := &Config{
		Service: "raincheck-api",
		Build:   BuildInfo{Version: "1.2.3"},
	}

	if got := cfg.UserAgent(); got != "raincheck-api/1.2.3" {
		t.Errorf("UserAgent() = %q, want raincheck-api/1.2.3", got)
	}
}

func TestUserAgent_DefaultBuild(t *testing.T) {
	cfg := &Config{
		Service: "raincheck-api",
		Build:   NewBuildInfo(),
	}

	if got := cfg.UserAgent(); got != "raincheck-api/dev" {
		t.Errorf("UserAgent() = %q, want raincheck-api/dev", got)
	}
}
