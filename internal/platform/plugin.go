// Package platform defines the plugin contract between the recorder core
// and platform-specific stream resolution, plus the registry mapping
// platform tags to plugin factories.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/liverec/liverec/internal/capture"
	"github.com/liverec/liverec/internal/config"
	"github.com/liverec/liverec/internal/events"
	"github.com/liverec/liverec/internal/types"
)

// ErrUnknownPlatform is returned when no plugin is registered for a
// streamer's platform tag.
var ErrUnknownPlatform = errors.New("unknown platform")

// Plugin is the contract the recorder core consumes. ShouldDownload may
// perform network I/O and may fail; Download blocks for the full capture
// duration and returns the finalized files.
type Plugin interface {
	ShouldDownload(ctx context.Context) (bool, error)
	Download(ctx context.Context) ([]types.StreamData, error)

	// OnPartedDownload sets the callback invoked once per finalized
	// segment. Passing nil clears it.
	OnPartedDownload(fn func(types.StreamData))
}

// Deps carries everything a plugin needs at construction time.
type Deps struct {
	Streamer config.Streamer
	Invoker  *capture.Invoker
	Bus      *events.Bus
	Logger   *slog.Logger
	Debug    bool
}

// Factory builds a plugin for one streamer.
type Factory func(deps Deps) Plugin

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a plugin factory for a platform tag. Called from plugin
// init functions.
func Register(tag string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[tag] = factory
}

// New constructs the plugin for the streamer's platform tag.
func New(deps Deps) (Plugin, error) {
	registryMu.RLock()
	factory, ok := registry[deps.Streamer.Platform]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, deps.Streamer.Platform)
	}
	return factory(deps), nil
}

// Platforms returns the registered platform tags, sorted.
func Platforms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
