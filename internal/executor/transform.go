package executor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/browserlet/browserlet/internal/bsl"
)

// transforms is the closed set of post-extraction value transforms
// browserlet ships; a locale-aware or domain-specific transform is an
// external collaborator's concern and is out of scope here.
var transforms = map[bsl.TransformName]func(string) (any, error){
	"":        func(s string) (any, error) { return s, nil },
	"trim":    func(s string) (any, error) { return strings.TrimSpace(s), nil },
	"upper":   func(s string) (any, error) { return strings.ToUpper(s), nil },
	"lower":   func(s string) (any, error) { return strings.ToLower(s), nil },
	"number":  func(s string) (any, error) { return parseNumber(s) },
}

func parseNumber(s string) (any, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || r == '$' || r == '%' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, fmt.Errorf("transform %q: %w", "number", err)
	}
	return f, nil
}

func applyTransform(name bsl.TransformName, raw string) (any, error) {
	fn, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	return fn(raw)
}
