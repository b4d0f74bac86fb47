package skin

import (
	"context"
	"encoding/json"
	"image"
	_ "image/png" // sprite sheets are PNG
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/logger"
)

// ErrInvalidName is returned for skin directory names outside the allowed
// character set. Nothing is fetched for such names.
var ErrInvalidName = errors.New("invalid skin name")

var validName = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// ValidName reports whether dirname may be loaded.
func ValidName(dirname string) bool {
	return validName.MatchString(dirname)
}

// Skin is a loaded (or loading) skin. Its fields are only valid once
// Loaded reports true.
type Skin struct {
	Dir     string
	Config  *Config
	Sprites []image.Image

	loaded atomic.Bool
	err    error
	done   chan struct{}
}

// Loaded reports whether the skin finished loading successfully.
func (s *Skin) Loaded() bool {
	return s.loaded.Load()
}

// Err returns the load error once loading finished, nil otherwise.
func (s *Skin) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Done is closed when loading finishes either way.
func (s *Skin) Done() <-chan struct{} {
	return s.done
}

// Store loads skins from a file system and caches them by directory name.
type Store struct {
	fsys fs.FS
	root string // on-disk root when watching, "" otherwise
	sink diag.Sink

	mu      sync.Mutex
	cache   map[string]*Skin
	changes chan string
}

// NewStore serves skins from fsys.
func NewStore(fsys fs.FS, sink diag.Sink) *Store {
	return &Store{
		fsys:    fsys,
		sink:    sink,
		cache:   make(map[string]*Skin),
		changes: make(chan string, 16),
	}
}

// NewDirStore serves skins from a directory on disk. Run Watch to evict
// skins whose files change.
func NewDirStore(dir string, sink diag.Sink) *Store {
	s := NewStore(os.DirFS(dir), sink)
	s.root = dir
	return s
}

// Acquire returns the skin for dirname, starting an asynchronous load when
// it is not cached. The caller polls Loaded.
func (s *Store) Acquire(dirname string) (*Skin, error) {
	if !ValidName(dirname) {
		s.sink.Announce(diag.Caution, "Refusing to load skin %q: invalid name", dirname)
		return nil, errors.Wrap(ErrInvalidName, dirname)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sk, ok := s.cache[dirname]; ok {
		return sk, nil
	}
	sk := &Skin{Dir: dirname, done: make(chan struct{})}
	s.cache[dirname] = sk
	go s.load(sk)
	return sk, nil
}

func (s *Store) load(sk *Skin) {
	defer close(sk.done)

	cfg, sprites, err := s.read(sk.Dir)
	if err != nil {
		sk.err = err
		s.mu.Lock()
		if s.cache[sk.Dir] == sk {
			delete(s.cache, sk.Dir)
		}
		s.mu.Unlock()
		s.sink.Announce(diag.Error, "Failed to load skin %q: %v", sk.Dir, err)
		return
	}

	sk.Config = cfg
	sk.Sprites = sprites
	sk.loaded.Store(true)
	logger.Debugf("Skin %q loaded (%d layers, %d sprites)", sk.Dir, len(cfg.Layers), len(sprites))
}

func (s *Store) read(dirname string) (*Config, []image.Image, error) {
	data, err := fs.ReadFile(s.fsys, path.Join(dirname, ConfigFile))
	if err != nil {
		return nil, nil, errors.Wrap(err, "read config")
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "invalid config")
	}

	sprites := make([]image.Image, len(cfg.Sprites))
	for i, name := range cfg.Sprites {
		if name != path.Base(name) {
			return nil, nil, errors.Errorf("sprite %q must be a plain file name", name)
		}
		f, err := s.fsys.Open(path.Join(dirname, name))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open sprite %s", name)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "decode sprite %s", name)
		}
		sprites[i] = img
	}
	return cfg, sprites, nil
}

// Evict drops dirname from the cache so the next Acquire reloads it.
func (s *Store) Evict(dirname string) {
	s.mu.Lock()
	delete(s.cache, dirname)
	s.mu.Unlock()
}

// Purge drops every cached skin.
func (s *Store) Purge() {
	s.mu.Lock()
	s.cache = make(map[string]*Skin)
	s.mu.Unlock()
}

// List returns the names of directories that contain a config.
func (s *Store) List() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, errors.Wrap(err, "list skins")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		if _, err := fs.Stat(s.fsys, path.Join(e.Name(), ConfigFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Changes delivers the names of skins evicted because their files changed.
func (s *Store) Changes() <-chan string {
	return s.changes
}

// Watch evicts skins whose files change on disk until ctx is done. It
// returns immediately for stores not backed by a directory.
func (s *Store) Watch(ctx context.Context) error {
	if s.root == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create skin watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(s.root); err != nil {
		return errors.Wrapf(err, "watch %s", s.root)
	}
	names, _ := s.List()
	for _, name := range names {
		if err := watcher.Add(filepath.Join(s.root, name)); err != nil {
			logger.Warnf("Cannot watch skin %q: %v", name, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(watcher, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("Skin watcher error: %v", err)
		}
	}
}

func (s *Store) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event) {
	rel, err := filepath.Rel(s.root, ev.Name)
	if err != nil || rel == "." {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	dirname := parts[0]
	if !ValidName(dirname) {
		return
	}

	// a new skin directory: watch its files too
	if len(parts) == 1 && ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			watcher.Add(ev.Name)
		}
	}

	s.Evict(dirname)
	s.sink.Announce(diag.Info, "Skin %q changed on disk, reloading", dirname)
	select {
	case s.changes <- dirname:
	default:
	}
}
