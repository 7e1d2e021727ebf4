// Package session keeps the film detail views mounted on behalf of API clients.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/moviesandme/internal/domain"
	"github.com/Clark-Hu/moviesandme/internal/favorites"
	"github.com/Clark-Hu/moviesandme/internal/filmdetail"
	"github.com/Clark-Hu/moviesandme/internal/tmdb"
)

// ErrUnknownView is returned for ids that were never opened, were closed, or expired.
var ErrUnknownView = errors.New("session: unknown view")

// DefaultTTL is how long an untouched view stays mounted.
const DefaultTTL = 15 * time.Minute

// Host records the route parameters a view registers once resolved.
type Host struct {
	mu     sync.Mutex
	params filmdetail.Params
	set    bool
}

// SetParams implements filmdetail.NavigationHost.
func (h *Host) SetParams(p filmdetail.Params) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.params = p
	h.set = true
}

// Params returns the registered parameters, if any.
func (h *Host) Params() (filmdetail.Params, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.params, h.set
}

// Outbox collects share requests for the client to hand to its share sheet.
type Outbox struct {
	mu   sync.Mutex
	last *filmdetail.ShareRequest
}

// Share implements filmdetail.Sharer.
func (o *Outbox) Share(_ context.Context, req filmdetail.ShareRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = &req
	return nil
}

// Last returns the most recent share request.
func (o *Outbox) Last() (filmdetail.ShareRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return filmdetail.ShareRequest{}, false
	}
	return *o.last, true
}

// View is one mounted film detail screen.
type View struct {
	ID         string
	Controller *filmdetail.Controller
	Host       *Host
	Outbox     *Outbox

	lastSeen time.Time
}

// Options configures a Registry.
type Options struct {
	Favorites favorites.Store
	Fetcher   tmdb.Fetcher
	TTL       time.Duration
	Logger    *log.Logger
	Now       func() time.Time
}

// Registry owns mounted views keyed by id.
type Registry struct {
	favs    favorites.Store
	fetcher tmdb.Fetcher
	ttl     time.Duration
	logger  *log.Logger
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

// NewRegistry builds an empty registry.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		favs:    opts.Favorites,
		fetcher: opts.Fetcher,
		ttl:     ttl,
		logger:  logger,
		now:     now,
		views:   make(map[string]*View),
	}
}

// Favorites exposes the shared store views are built with.
func (r *Registry) Favorites() favorites.Store {
	return r.favs
}

// Open creates and mounts a view for filmID.
func (r *Registry) Open(ctx context.Context, filmID int64, platform domain.Platform) (*View, error) {
	host := &Host{}
	outbox := &Outbox{}
	ctrl, err := filmdetail.New(filmdetail.Options{
		FilmID:    filmID,
		Favorites: r.favs,
		Fetcher:   r.fetcher,
		Host:      host,
		Sharer:    outbox,
		Platform:  platform,
		Logger:    r.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := ctrl.Mount(ctx); err != nil {
		return nil, fmt.Errorf("mount view for film %d: %w", filmID, err)
	}

	view := &View{
		ID:         uuid.NewString(),
		Controller: ctrl,
		Host:       host,
		Outbox:     outbox,
		lastSeen:   r.now(),
	}
	r.mu.Lock()
	r.views[view.ID] = view
	r.mu.Unlock()
	return view, nil
}

// Get returns a mounted view and refreshes its expiry.
func (r *Registry) Get(id string) (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.views[id]
	if !ok {
		return nil, ErrUnknownView
	}
	view.lastSeen = r.now()
	return view, nil
}

// Close unmounts and forgets a view.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	view, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownView
	}
	view.Controller.Unmount()
	return nil
}

// Len returns the number of mounted views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep unmounts views idle for longer than the TTL and returns how many.
func (r *Registry) Sweep(now time.Time) int {
	var expired []*View
	r.mu.Lock()
	for id, view := range r.views {
		if now.Sub(view.lastSeen) > r.ttl {
			expired = append(expired, view)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, view := range expired {
		view.Controller.Unmount()
	}
	if len(expired) > 0 {
		r.logger.Printf("session: expired %d idle views", len(expired))
	}
	return len(expired)
}

// Run sweeps every interval until ctx ends, then unmounts every view.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}

// CloseAll unmounts every view.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	r.mu.Unlock()
	for _, view := range views {
		view.Controller.Unmount()
	}
}
