// Package config loads harness configuration with koanf from, in increasing
// priority: built-in defaults, an optional YAML file, DRAPID_ environment
// variables, and explicit overrides such as CLI flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/stevemurr/drapid/hashtable"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "DRAPID_"

// Config is the harness configuration.
type Config struct {
	Server     ServerSection     `koanf:"server"`
	Collection CollectionSection `koanf:"collection"`
	Table      TableSection      `koanf:"table"`
	Log        LogSection        `koanf:"log"`
}

type ServerSection struct {
	Addr string `koanf:"addr"`
}

type CollectionSection struct {
	Path    string `koanf:"path"`
	Backend string `koanf:"backend"`
	Key     string `koanf:"key"`
}

type TableSection struct {
	Path    string `koanf:"path"`
	Backend string `koanf:"backend"`
	Key     string `koanf:"key"`
	Size    int    `koanf:"size"`
	Digest  string `koanf:"digest"`
}

type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the built-in configuration values as a flat key map.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":    "127.0.0.1:8080",
		"collection.key": "name",
		"table.key":      "name",
		"table.size":     hashtable.DefaultSize,
		"table.digest":   hashtable.Blake2b{}.Name(),
		"log.level":      "info",
		"log.format":     "json",
	}
}

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a loader seeded with Defaults.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads defaults, the file (if any) and the environment, then applies
// overrides. Keys in overrides use dotted paths ("table.size"); zero values
// are skipped so unset flags do not clobber lower layers.
func (l *Loader) Load(overrides map[string]any) (*Config, error) {
	if err := l.k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load file %s: %w", l.filePath, err)
		}
	}

	// DRAPID_TABLE_SIZE -> table.size
	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.Replace(s, "_", ".", 1)
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	set := map[string]any{}
	for k, v := range overrides {
		if !isZero(v) {
			set[k] = v
		}
	}
	if err := l.k.Load(mapProvider(set), nil); err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case bool:
		return !x
	}
	return false
}

var errReadBytesNotSupported = errors.New("config: ReadBytes not supported by map provider")

// mapProvider loads a flat dotted-key map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		setPath(out, strings.Split(k, "."), v)
	}
	return out, nil
}

func setPath(dst map[string]any, path []string, v any) {
	if len(path) == 1 {
		dst[path[0]] = v
		return
	}
	child, ok := dst[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		dst[path[0]] = child
	}
	setPath(child, path[1:], v)
}
