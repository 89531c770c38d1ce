// Package safelinks extracts and classifies links against a domain
// allowlist. A hostname is safe when it equals an allowlisted domain or is
// a dot-separated subdomain of one; "evil-discord.com" never matches
// "discord.com".
package safelinks

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var urlPattern = regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s<>]+`)

// DefaultAllowlist covers well-known destinations that are never treated
// as link violations.
var DefaultAllowlist = []string{
	"discord.com",
	"discord.gg",
	"discordapp.com",
	"youtube.com",
	"youtu.be",
	"google.com",
	"github.com",
	"twitter.com",
	"x.com",
	"reddit.com",
	"twitch.tv",
	"spotify.com",
	"wikipedia.org",
	"imgur.com",
	"tenor.com",
	"giphy.com",
	"instagram.com",
	"facebook.com",
	"tiktok.com",
	"stackoverflow.com",
}

func ExtractURLs(content string) []string {
	return urlPattern.FindAllString(content, -1)
}

// Hostname normalizes a raw link to its bare hostname: default scheme,
// lowercase, punycode, leading "www." stripped.
func Hostname(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(parsed.Hostname())
	if asciiHost, err := idna.ToASCII(host); err == nil {
		host = asciiHost
	}
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", errors.New("no hostname")
	}
	return host, nil
}

func Allowed(host string, allowlist []string) bool {
	for _, domain := range allowlist {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
