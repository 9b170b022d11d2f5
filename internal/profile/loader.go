package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/zsiec/avtranscode/internal/media"
)

var profileExts = map[string]bool{".yaml": true, ".yml": true, ".json": true, ".toml": true}

// canonicalKeys maps the lower-cased keys produced by viper back to the
// well-known spelling.
var canonicalKeys = map[string]string{
	strings.ToLower(KeyName):     KeyName,
	strings.ToLower(KeyLongName): KeyLongName,
	strings.ToLower(KeyType):     KeyType,
}

// Loader holds the known profiles by name.
type Loader struct {
	log      *slog.Logger
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewLoader returns a loader holding the built-in presets. If log is nil,
// slog.Default() is used.
func NewLoader(log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	l := &Loader{
		log:      log.With("component", "profile-loader"),
		profiles: make(map[string]Profile),
	}
	for _, p := range presets {
		l.profiles[p.Name()] = p.Clone()
	}
	return l
}

// Add validates p and registers it, replacing any profile of the same name.
func (l *Loader) Add(p Profile) error {
	if err := Check(p); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.profiles[p.Name()]; ok {
		l.log.Debug("replacing profile", "name", p.Name())
	}
	l.profiles[p.Name()] = p.Clone()
	return nil
}

// Get returns a copy of the named profile.
func (l *Loader) Get(name string) (Profile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile: %w: unknown profile %q", media.ErrConfiguration, name)
	}
	return p.Clone(), nil
}

// List returns every profile sorted by name.
func (l *Loader) List() []Profile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Profile, 0, len(l.profiles))
	for _, p := range l.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ListByType returns the profiles of type typ sorted by name.
func (l *Loader) ListByType(typ string) []Profile {
	var out []Profile
	for _, p := range l.List() {
		if p.Type() == typ {
			out = append(out, p)
		}
	}
	return out
}

// LoadFromDir loads every yaml, json or toml file in dir as one profile.
// Invalid files are logged and skipped. It returns the number loaded.
func (l *Loader) LoadFromDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("profile: reading %s: %w: %w", dir, media.ErrResource, err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !profileExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		p, err := LoadFile(path)
		if err != nil {
			l.log.Warn("skipping profile file", "file", path, "error", err)
			continue
		}
		if err := l.Add(p); err != nil {
			l.log.Warn("skipping invalid profile", "file", path, "error", err)
			continue
		}
		l.log.Info("profile loaded", "name", p.Name(), "file", path)
		n++
	}
	return n, nil
}

// LoadFile reads one profile from a yaml, json or toml file.
func LoadFile(path string) (Profile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("profile: %w: %w", media.ErrConfiguration, err)
	}
	p := make(Profile)
	for _, k := range v.AllKeys() {
		key := k
		if c, ok := canonicalKeys[k]; ok {
			key = c
		}
		p[key] = v.GetString(k)
	}
	return p, nil
}
