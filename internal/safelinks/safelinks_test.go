package safelinks

import "testing"

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("join https://discord.gg/abc now, also www.example.com/x")
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d: %v", len(urls), urls)
	}
}

func TestHostname(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"http://discord.com/invite/x", "discord.com"},
		{"https://WWW.Discord.com/x", "discord.com"},
		{"www.example.com/path", "example.com"},
		{"https://sub.discord.com/x", "sub.discord.com"},
	}
	for _, tc := range cases {
		got, err := Hostname(tc.raw)
		if err != nil {
			t.Fatalf("hostname %q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("hostname %q: expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}

func TestAllowedDotBoundary(t *testing.T) {
	allowlist := []string{"discord.com"}
	if !Allowed("discord.com", allowlist) {
		t.Fatalf("exact domain should be allowed")
	}
	if !Allowed("sub.discord.com", allowlist) {
		t.Fatalf("subdomain should be allowed")
	}
	if Allowed("evil-discord.com", allowlist) {
		t.Fatalf("suffix without dot boundary must not be allowed")
	}
	if Allowed("discord.com.evil.net", allowlist) {
		t.Fatalf("prefix trick must not be allowed")
	}
}
