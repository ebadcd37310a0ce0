package config

import (
	"fmt"
	"path/filepath"

	"github.com/bnema/softbright/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type handler struct {
	id int
	fn func()
}

// Store is the live settings store used by the daemon. Reads and writes happen
// on the event loop; change notifications are delivered through post, so a
// handler never runs inside the setter that caused it.
type Store struct {
	path     string
	values   Snapshot
	handlers map[string][]handler
	nextID   int
	post     func(func())
	watcher  *fsnotify.Watcher
}

// NewStore loads the settings file at path. post schedules change
// notifications, typically mainloop.Loop.Post.
func NewStore(path string, post func(func())) (*Store, error) {
	v := newViper(path)
	if err := readConfig(v); err != nil {
		return nil, err
	}
	return &Store{
		path:     path,
		values:   snapshot(v),
		handlers: make(map[string][]handler),
		post:     post,
	}, nil
}

// NewMemoryStore returns a store that is never persisted. overrides replace
// schema defaults.
func NewMemoryStore(post func(func()), overrides map[string]any) *Store {
	values := make(Snapshot, len(Schema))
	for _, f := range Schema {
		values[f.Key] = f.Default
	}
	for k, v := range overrides {
		values[k] = v
	}
	return &Store{
		values:   values,
		handlers: make(map[string][]handler),
		post:     post,
	}
}

// Path returns the backing file, empty for memory stores.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Bool(key string) bool {
	return s.values.Bool(key)
}

func (s *Store) Double(key string) float64 {
	return s.values.Double(key)
}

func (s *Store) String(key string) string {
	return s.values.String(key)
}

func (s *Store) SetBool(key string, value bool) {
	s.set(key, value)
}

func (s *Store) SetDouble(key string, value float64) {
	s.set(key, value)
}

func (s *Store) SetString(key string, value string) {
	s.set(key, value)
}

// Set stores an already typed value, as returned by ParseValue.
func (s *Store) Set(key string, value any) error {
	f, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	switch v := value.(type) {
	case bool:
		if f.Kind != KindBool {
			return fmt.Errorf("%w: %s expects %s", ErrInvalidValue, key, f.Kind)
		}
	case float64:
		if f.Kind != KindDouble {
			return fmt.Errorf("%w: %s expects %s", ErrInvalidValue, key, f.Kind)
		}
		if !finite(v) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidValue, key, v)
		}
	case string:
		if f.Kind != KindString {
			return fmt.Errorf("%w: %s expects %s", ErrInvalidValue, key, f.Kind)
		}
	default:
		return fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidValue, key, value)
	}
	s.set(key, value)
	return nil
}

func (s *Store) set(key string, value any) {
	if s.values[key] == value {
		return
	}
	logger.Debugf("settings: %s = %v", key, value)
	s.values[key] = value
	if err := s.persist(); err != nil {
		logger.Warnf("settings: failed to persist %s: %v", key, err)
	}
	s.emit(key)
}

func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	w := viper.New()
	w.SetConfigType("toml")
	for k, v := range s.values {
		w.Set(k, v)
	}
	return writeConfig(w, s.path)
}

// Connect registers fn for changes of key and returns its disconnect function.
func (s *Store) Connect(key string, fn func()) func() {
	s.nextID++
	id := s.nextID
	s.handlers[key] = append(s.handlers[key], handler{id: id, fn: fn})
	return func() {
		hs := s.handlers[key]
		for i, h := range hs {
			if h.id == id {
				s.handlers[key] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) connected(key string, id int) (func(), bool) {
	for _, h := range s.handlers[key] {
		if h.id == id {
			return h.fn, true
		}
	}
	return nil, false
}

func (s *Store) emit(key string) {
	for _, h := range s.handlers[key] {
		id := h.id
		s.post(func() {
			// Disconnected between the change and its delivery.
			if fn, ok := s.connected(key, id); ok {
				fn()
			}
		})
	}
}

// Reload re-reads the settings file and notifies every key whose value changed.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	v := newViper(s.path)
	if err := readConfig(v); err != nil {
		return err
	}
	fresh := snapshot(v)
	for _, f := range Schema {
		if fresh[f.Key] != s.values[f.Key] {
			logger.Debugf("settings: %s changed on disk: %v -> %v", f.Key, s.values[f.Key], fresh[f.Key])
			s.values[f.Key] = fresh[f.Key]
			s.emit(f.Key)
		}
	}
	return nil
}

// Watch follows external edits of the settings file. The reload itself is
// posted to the loop.
func (s *Store) Watch() error {
	if s.path == "" || s.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	// Editors replace files atomically, so watch the directory.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	s.watcher = w

	name := filepath.Clean(s.path)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					s.post(func() {
						if err := s.Reload(); err != nil {
							logger.Warnf("settings: reload failed: %v", err)
						}
					})
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warnf("settings: watcher error: %v", err)
			}
		}
	}()
	return nil
}

// Close stops watching the settings file.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
