package detect

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Loader builds a ready Detector from a model path.
type Loader func(path string) (*Detector, error)

// LoadFile is the default Loader: a Detector with default options loaded from path.
func LoadFile(path string) (*Detector, error) {
	d := New()
	if err := d.LoadFromFile(path); err != nil {
		return nil, err
	}
	return d, nil
}

// Registry holds one shared Detector for a process.
//
// Get loads the model at most once; concurrent first callers wait for that single
// load. Reset drops the shared detector so the next Get loads again. Reset and
// Registry.Detect exclude each other, so a detection routed through the registry
// never races with a reset.
type Registry struct {
	mu       sync.RWMutex
	loader   Loader
	detector *Detector
	path     string
}

// NewRegistry creates an empty registry. A nil loader means LoadFile.
func NewRegistry(loader Loader) *Registry {
	if loader == nil {
		loader = LoadFile
	}
	return &Registry{loader: loader}
}

// Get returns the shared detector, loading it from path on first use. Once a detector is
// held, path is ignored until Reset.
func (r *Registry) Get(path string) (*Detector, error) {
	r.mu.RLock()
	d := r.detector
	r.mu.RUnlock()
	if d != nil {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detector != nil {
		return r.detector, nil
	}

	d, err := r.loader(path)
	if err != nil {
		return nil, err
	}
	r.detector = d
	r.path = path

	log.Debug().Str("path", path).Msg("shared detector loaded")
	return d, nil
}

// Set installs d as the shared detector.
func (r *Registry) Set(d *Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detector = d
	r.path = ""
}

// Path returns the model path the shared detector was loaded from, if any.
func (r *Registry) Path() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// Reset drops the shared detector.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detector = nil
	r.path = ""
}

// Detect runs the shared detector while holding the registry read lock.
func (r *Registry) Detect(text string) (Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.detector == nil {
		return Result{}, ErrModelNotLoaded
	}
	return r.detector.Detect(text)
}
