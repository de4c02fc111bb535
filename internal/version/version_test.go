// ABOUTME: Tests for version constants
// ABOUTME: Ensures version information is properly defined
package version

import (
	"strings"
	"testing"
)

func TestVersionDefined(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if Product == "" {
		t.Error("Product should not be empty")
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()

	if !strings.HasPrefix(ua, "cdg-player/") {
		t.Errorf("unexpected user agent prefix: %s", ua)
	}
	if !strings.HasSuffix(ua, Version) {
		t.Errorf("user agent should end with version, got %s", ua)
	}
}
