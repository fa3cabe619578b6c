package fetcher

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

// ErrUnsupportedPlatform is returned when no fetcher serves a platform name.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Registry maps canonical platform names to fetchers.
type Registry struct {
	fetchers map[string]models.Fetcher
}

// New returns a Registry holding the given fetchers, keyed by their Platform.
func New(fetchers ...models.Fetcher) *Registry {
	r := &Registry{fetchers: make(map[string]models.Fetcher, len(fetchers))}
	for _, f := range fetchers {
		r.fetchers[strings.ToLower(f.Platform())] = f
	}
	return r
}

// Resolve returns the fetcher for a platform name. The name is trimmed and
// lowercased; anything outside the supported set is rejected.
func (r *Registry) Resolve(platform string) (models.Fetcher, error) {
	name := strings.ToLower(strings.TrimSpace(platform))
	if !models.IsSupportedPlatform(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	f, ok := r.fetchers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	return f, nil
}

// Platforms returns the registered platform names in sorted order.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.fetchers))
	for name := range r.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
