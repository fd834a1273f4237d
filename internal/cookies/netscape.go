// Package cookies loads browser-exported cookies.txt files, which some
// scrape hosts require to get past their bot checks.
package cookies

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const httpOnlyPrefix = "#HttpOnly_"

// Entry is one cookie line together with the host it was issued for.
type Entry struct {
	Host   string
	Cookie *http.Cookie
}

// ParseNetscape reads the tab separated cookies.txt format:
// domain, include-subdomains, path, secure, expiry, name, value.
// Malformed lines are skipped. An expiry of 0 marks a session cookie.
func ParseNetscape(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}
		domain := parts[0]
		host := strings.TrimPrefix(domain, ".")
		if host == "" {
			continue
		}
		c := &http.Cookie{
			Name:     parts[5],
			Value:    parts[6],
			Path:     parts[2],
			Secure:   strings.EqualFold(parts[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if strings.EqualFold(parts[1], "TRUE") {
			c.Domain = host
		}
		if exp, err := strconv.ParseInt(parts[4], 10, 64); err == nil && exp > 0 {
			c.Expires = time.Unix(exp, 0)
		}
		entries = append(entries, Entry{Host: host, Cookie: c})
	}
	return entries, scanner.Err()
}

// LoadJar builds a cookie jar from the cookies.txt file at path.
func LoadJar(path string) (http.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookies: %w", err)
	}
	defer f.Close()
	entries, err := ParseNetscape(f)
	if err != nil {
		return nil, fmt.Errorf("parse cookies %s: %w", path, err)
	}
	return NewJar(entries)
}

// NewJar stores entries in a public-suffix aware jar.
func NewJar(entries []Entry) (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	byHost := make(map[string][]*http.Cookie)
	for _, e := range entries {
		byHost[e.Host] = append(byHost[e.Host], e.Cookie)
	}
	for host, cs := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, cs)
	}
	return jar, nil
}
