package cookies

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = "# Netscape HTTP Cookie File\n" +
	".xiaoxintv.com\tTRUE\t/\tTRUE\t4102444800\tcf_clearance\tabc\n" +
	"#HttpOnly_xiaoxintv.com\tFALSE\t/\tFALSE\t0\tPHPSESSID\tsess\n" +
	"broken line\n" +
	"\n"

func TestParseNetscape(t *testing.T) {
	entries, err := ParseNetscape(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("ParseNetscape() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	first := entries[0]
	if first.Host != "xiaoxintv.com" || first.Cookie.Domain != "xiaoxintv.com" || !first.Cookie.Secure || first.Cookie.Expires.IsZero() {
		t.Fatalf("entries[0] = %+v %+v", first, first.Cookie)
	}
	second := entries[1]
	if !second.Cookie.HttpOnly || second.Cookie.Domain != "" || !second.Cookie.Expires.IsZero() || second.Cookie.Name != "PHPSESSID" {
		t.Fatalf("entries[1] = %+v", second.Cookie)
	}
}

func TestLoadJar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	jar, err := LoadJar(path)
	if err != nil {
		t.Fatalf("LoadJar() error = %v", err)
	}
	u, _ := url.Parse("https://www.xiaoxintv.com/index.php")
	got := jar.Cookies(u)
	if len(got) != 1 || got[0].Name != "cf_clearance" {
		t.Fatalf("Cookies(subdomain) = %v", got)
	}
	u, _ = url.Parse("https://xiaoxintv.com/")
	if got := jar.Cookies(u); len(got) != 2 {
		t.Fatalf("Cookies(host) = %v", got)
	}
}

func TestLoadJarMissingFile(t *testing.T) {
	if _, err := LoadJar(filepath.Join(t.TempDir(), "none.txt")); err == nil {
		t.Fatalf("LoadJar() error = nil")
	}
}
