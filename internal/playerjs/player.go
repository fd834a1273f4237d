// Package playerjs evaluates the inline player configuration that MacCMS
// themed pages embed, and decodes its obfuscated stream URL.
package playerjs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"

	"github.com/famomatic/vodfetch/internal/types"
)

// Config is the subset of the player configuration the downloader needs.
type Config struct {
	URL     string
	URLNext string
	From    string
	Encrypt int64
}

// configVars are the global names themes assign the configuration to.
var configVars = []string{"player_aaaa", "player_data"}

var scriptPattern = regexp.MustCompile(`(?s)<script[^>]*>\s*(var\s+player_(?:aaaa|data)\s*=\s*\{.*?\})\s*;?\s*</script>`)

// ExtractScript returns the inline script that assigns the player config.
func ExtractScript(html string) (string, bool) {
	m := scriptPattern.FindStringSubmatch(html)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Evaluate runs script in a fresh runtime and returns the decoded config.
// Evaluation is interrupted when ctx ends.
func Evaluate(ctx context.Context, script string) (*Config, error) {
	vm := goja.New()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	if _, err := vm.RunString(preludeJS); err != nil {
		return nil, fmt.Errorf("player prelude: %w", err)
	}
	if _, err := vm.RunString(script); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, ctx.Err()
		}
		return nil, &types.ParseError{What: "player config", Err: err}
	}

	var root goja.Value
	for _, name := range configVars {
		if v := vm.Get(name); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			root = v
			break
		}
	}
	if root == nil {
		return nil, &types.ParseError{What: "player config", Err: errors.New("no player config assigned")}
	}
	obj := root.ToObject(vm)

	cfg := &Config{
		URL:     stringField(obj, "url"),
		URLNext: stringField(obj, "url_next"),
		From:    stringField(obj, "from"),
	}
	if v := obj.Get("encrypt"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		cfg.Encrypt = v.ToInteger()
	}

	primary, err := decodeURL(vm, cfg.URL, cfg.Encrypt)
	if err != nil {
		return nil, err
	}
	cfg.URL = primary
	if cfg.URLNext != "" {
		if next, err := decodeURL(vm, cfg.URLNext, cfg.Encrypt); err == nil {
			cfg.URLNext = next
		}
	}
	if cfg.URL == "" {
		return nil, &types.ParseError{What: "player config", Err: errors.New("empty url")}
	}
	return cfg, nil
}

func stringField(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// decodeURL undoes the player's obfuscation: 1 is escape(), 2 is base64 of
// escape().
func decodeURL(vm *goja.Runtime, raw string, encrypt int64) (string, error) {
	switch encrypt {
	case 0:
		return raw, nil
	case 1:
		return unescape(vm, raw)
	case 2:
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
		if err != nil {
			return "", &types.ParseError{What: "player url", Err: fmt.Errorf("base64: %w", err)}
		}
		return unescape(vm, string(decoded))
	default:
		return "", &types.ParseError{What: "player url", Err: fmt.Errorf("unknown encrypt mode %d", encrypt)}
	}
}

func unescape(vm *goja.Runtime, s string) (string, error) {
	fn, ok := goja.AssertFunction(vm.Get("unescape"))
	if !ok {
		return "", errors.New("runtime has no unescape")
	}
	out, err := fn(goja.Undefined(), vm.ToValue(s))
	if err != nil {
		return "", &types.ParseError{What: "player url", Err: err}
	}
	return out.String(), nil
}

const preludeJS = `
var globalThis = this;
if (typeof window === 'undefined') { var window = this; }
if (typeof document === 'undefined') { var document = { write: function(){}, getElementById: function(){ return null; } }; }
if (typeof navigator === 'undefined') { var navigator = { userAgent: '' }; }
if (typeof location === 'undefined') { var location = { href: '', host: '', protocol: 'https:' }; }
`
