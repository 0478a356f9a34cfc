package casestatus

import (
	"ecourts-backend/lib/browser"
	"sort"
	"sync"
	"time"
)

// session is one principal's live browser session plus everything the
// flow remembers about it. It is only ever touched while holding the lock
// of the entry that owns it.
type session struct {
	page    browser.Page
	waiter  browser.Waiter
	created time.Time
	stage   Stage

	// option lists as last offered by the portal, nil until listed
	states    []string
	districts []string
	courts    []string
	caseTypes []string

	// pdfURL is the absolute url of the latest order of the last
	// extracted case, empty when it had none.
	pdfURL string
}

// forget drops every remembered list after (and including) the one at
// stage.
func (s *session) forget(from Stage) {
	if from <= StageStatesListed {
		s.states = nil
	}
	if from <= StageDistrictsListed {
		s.districts = nil
	}
	if from <= StageCourtsListed {
		s.courts = nil
	}
	if from <= StageCaseTypesAndCaptcha {
		s.caseTypes = nil
	}
	s.pdfURL = ""
}

// entry is a principal's slot in the registry. mu serializes every
// operation on the principal's session, the registry's own lock is never
// held while waiting on it.
type entry struct {
	principal string

	mu sync.Mutex
	// session is nil when the principal has no live session.
	session *session
	// lost is set when the session died or was found dead, so the next
	// stage operation can tell the caller to start over.
	lost bool
	// removed is set once the entry was taken out of the registry,
	// acquirers that were waiting on it have to look it up again.
	removed bool

	infoMu   sync.Mutex
	info     SessionInfo
	lastUsed time.Time
}

// SessionInfo is a point in time view of a principal's session.
type SessionInfo struct {
	Principal string    `json:"principal"`
	Live      bool      `json:"live"`
	Stage     Stage     `json:"stage"`
	Created   time.Time `json:"created"`
	LastUsed  time.Time `json:"last_used"`
}

// publish refreshes the snapshot served by Registry.Snapshot, callers
// hold e.mu.
func (e *entry) publish(now time.Time) {
	info := SessionInfo{Principal: e.principal}
	if e.session != nil {
		info.Live = true
		info.Stage = e.session.stage
		info.Created = e.session.created
	}
	info.LastUsed = now

	e.infoMu.Lock()
	e.info = info
	e.lastUsed = now
	e.infoMu.Unlock()
}

func (e *entry) idleSince() time.Time {
	e.infoMu.Lock()
	defer e.infoMu.Unlock()
	return e.lastUsed
}

// Registry maps principals to their entries.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// acquire returns the principal's entry locked, creating an empty one if
// needed. Operations on different principals never wait on each other.
func (r *Registry) acquire(principal string) *entry {
	for {
		r.mu.Lock()
		e, ok := r.entries[principal]
		if !ok {
			e = &entry{principal: principal}
			r.entries[principal] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

// remove takes a locked entry out of the registry, it stays locked.
func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	if r.entries[e.principal] == e {
		delete(r.entries, e.principal)
	}
	r.mu.Unlock()
	e.removed = true
}

// lookup returns the principal's entry without locking it.
func (r *Registry) lookup(principal string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[principal]
	return e, ok
}

func (r *Registry) all() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Len is the number of principals that have an entry.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot lists every entry ordered by principal. It does not wait for
// operations in flight, their effects show up once they finish.
func (r *Registry) Snapshot() []SessionInfo {
	entries := r.all()
	out := make([]SessionInfo, 0, len(entries))
	for _, e := range entries {
		e.infoMu.Lock()
		info := e.info
		e.infoMu.Unlock()
		if info.Principal == "" {
			info.Principal = e.principal
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Principal < out[j].Principal
	})
	return out
}
