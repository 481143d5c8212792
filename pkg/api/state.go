package api

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
)

// LoadFunc reads a payload from a source path.
type LoadFunc func(path string) (*payload.Payload, error)

type loadedPayload struct {
	payload  *payload.Payload
	source   string
	loadedAt time.Time
}

// State holds the payload currently being served. Readers never block on a
// reload; a reload swaps the whole payload in one step.
type State struct {
	current atomic.Pointer[loadedPayload]

	reloadMu sync.Mutex
	load     LoadFunc

	listenersMu sync.RWMutex
	listeners   []func(pl *payload.Payload, source string)
	failures    []func(source string, err error)
}

// NewState returns a state serving pl. pl may be nil, in which case requests
// fail with PAYLOAD_UNAVAILABLE until a reload succeeds. source is the path
// Reload re-reads when called without one.
func NewState(pl *payload.Payload, source string) *State {
	s := &State{load: payload.Load}
	s.current.Store(&loadedPayload{payload: pl, source: source, loadedAt: time.Now()})
	return s
}

// SetLoader replaces the function used by Reload.
func (s *State) SetLoader(load LoadFunc) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.load = load
}

// OnLoad registers fn to be called after every successful reload.
func (s *State) OnLoad(fn func(pl *payload.Payload, source string)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// OnReloadFailed registers fn to be called when a reload fails.
func (s *State) OnReloadFailed(fn func(source string, err error)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.failures = append(s.failures, fn)
}

// Payload returns the payload being served.
func (s *State) Payload() (*payload.Payload, error) {
	cur := s.current.Load()
	if cur.payload == nil {
		return nil, tserrors.AttachSuggestions(
			tserrors.Newf(tserrors.ErrPayloadUnavailable, "no payload is loaded"))
	}
	return cur.payload, nil
}

// Source returns the path of the payload being served.
func (s *State) Source() string { return s.current.Load().source }

// LoadedAt returns when the current payload was installed.
func (s *State) LoadedAt() time.Time { return s.current.Load().loadedAt }

// Reload reads path, or the current source when path is empty, and swaps
// the result in. On failure the previous payload keeps being served.
func (s *State) Reload(path string) (*payload.Payload, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if path == "" {
		path = s.Source()
	}
	if path == "" {
		return nil, tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "no snapshot path to reload from")
	}

	pl, err := s.load(path)

	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	if err != nil {
		if te, ok := tserrors.AsTScopeError(err); ok && len(te.Context) > 0 {
			log.Printf("[api] reload of %s failed: %v (%s)", path, err, te.ContextString())
		} else {
			log.Printf("[api] reload of %s failed: %v", path, err)
		}
		for _, fn := range s.failures {
			fn(path, err)
		}
		return nil, err
	}
	s.current.Store(&loadedPayload{payload: pl, source: path, loadedAt: time.Now()})
	log.Printf("[api] loaded payload %s from %s", pl.ID(), path)

	for _, fn := range s.listeners {
		fn(pl, path)
	}
	return pl, nil
}
