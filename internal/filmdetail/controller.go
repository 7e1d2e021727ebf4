// Package filmdetail implements the film detail view: the mount-time decision
// between reusing a favorite and fetching from the catalog, the favorite
// toggle, share, and a pure render step over the resulting state.
package filmdetail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Clark-Hu/moviesandme/internal/domain"
	"github.com/Clark-Hu/moviesandme/internal/favorites"
	"github.com/Clark-Hu/moviesandme/internal/tmdb"
)

var (
	// ErrAlreadyMounted is returned by a second Mount on the same controller.
	ErrAlreadyMounted = errors.New("filmdetail: already mounted")
	// ErrUnmounted is returned by operations on a controller after Unmount.
	ErrUnmounted = errors.New("filmdetail: unmounted")
	// ErrNotResolved is returned by toggle and share before a film is available.
	ErrNotResolved = errors.New("filmdetail: film not resolved")
	// ErrNotRetryable is returned by Retry outside the Failed state.
	ErrNotRetryable = errors.New("filmdetail: nothing to retry")
	// ErrFilmMismatch is the failure recorded when the catalog answers with a
	// different film than the one requested.
	ErrFilmMismatch = errors.New("filmdetail: catalog returned another film")
)

// State is the lifecycle position of one mounted view.
type State int

const (
	Unresolved State = iota
	Loading
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Loading:
		return "loading"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ShareRequest is what the platform share sheet receives.
type ShareRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Sharer hands a share request to the platform.
type Sharer interface {
	Share(ctx context.Context, req ShareRequest) error
}

// ShareFunc invokes the share flow of a resolved view.
type ShareFunc func(ctx context.Context) (ShareRequest, error)

// Params are registered with the navigation host once the film is resolved,
// so header chrome can offer share.
type Params struct {
	Share ShareFunc
	Film  domain.Film
}

// NavigationHost receives the view's route parameters.
type NavigationHost interface {
	SetParams(p Params)
}

// Options configures a Controller.
type Options struct {
	FilmID    int64
	Favorites favorites.Store
	Fetcher   tmdb.Fetcher
	Host      NavigationHost
	Sharer    Sharer
	Platform  domain.Platform
	Logger    *log.Logger
}

// Snapshot is a copy of a controller's state. Film is non-nil only when
// resolved; Err is non-nil only when failed.
type Snapshot struct {
	State State
	Film  *domain.Film
	Err   error
}

// Controller drives one mounted film detail view.
type Controller struct {
	filmID   int64
	favs     favorites.Store
	fetcher  tmdb.Fetcher
	host     NavigationHost
	sharer   Sharer
	platform domain.Platform
	logger   *log.Logger

	mu        sync.Mutex
	state     State
	film      domain.Film
	err       error
	mounted   bool
	unmounted bool
	life      context.Context
	cancel    context.CancelFunc
	settled   chan struct{}
	attempt   int
}

// New builds an unmounted controller.
func New(opts Options) (*Controller, error) {
	if opts.FilmID <= 0 {
		return nil, fmt.Errorf("filmdetail: invalid film id %d", opts.FilmID)
	}
	if opts.Favorites == nil || opts.Fetcher == nil {
		return nil, errors.New("filmdetail: favorites store and fetcher are required")
	}
	if _, err := domain.ParsePlatform(string(opts.Platform)); err != nil {
		return nil, fmt.Errorf("filmdetail: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		filmID:   opts.FilmID,
		favs:     opts.Favorites,
		fetcher:  opts.Fetcher,
		host:     opts.Host,
		sharer:   opts.Sharer,
		platform: opts.Platform,
		logger:   logger,
		state:    Unresolved,
	}, nil
}

// FilmID returns the requested film identifier.
func (c *Controller) FilmID() int64 {
	return c.filmID
}

// Platform returns the platform the view was built for.
func (c *Controller) Platform() domain.Platform {
	return c.platform
}

// Mount resolves the film. A favorite is adopted directly; otherwise the view
// is Loading when Mount returns and a single fetch runs in the background
// until it completes or Unmount cancels it.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return ErrUnmounted
	}
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.life, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Unlock()

	set, err := c.favs.Snapshot(ctx)
	if err != nil {
		c.logger.Printf("filmdetail: favorites snapshot failed for film %d, fetching instead: %v", c.filmID, err)
	}
	if film, ok := set.Get(c.filmID); ok {
		c.mu.Lock()
		if c.unmounted {
			c.mu.Unlock()
			return ErrUnmounted
		}
		c.state = Resolved
		c.film = film
		c.mu.Unlock()
		c.publish(film)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return ErrUnmounted
	}
	c.startFetchLocked()
	return nil
}

// Retry issues a new fetch after a failure.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return ErrUnmounted
	}
	if c.state != Failed {
		return ErrNotRetryable
	}
	c.startFetchLocked()
	return nil
}

// Unmount cancels an outstanding fetch. Completions arriving afterwards are
// dropped. Safe to call more than once.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return
	}
	c.unmounted = true
	if c.cancel != nil {
		c.cancel()
	}
	c.settleLocked()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Await blocks until the view is no longer Loading, the view is unmounted, or
// ctx ends.
func (c *Controller) Await(ctx context.Context) (Snapshot, error) {
	for {
		c.mu.Lock()
		if c.state != Loading || c.unmounted {
			snap := c.snapshotLocked()
			c.mu.Unlock()
			return snap, nil
		}
		ch := c.settled
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

// ToggleFavorite dispatches one toggle of the resolved film and reports
// whether it is a favorite afterwards.
func (c *Controller) ToggleFavorite(ctx context.Context) (bool, error) {
	film, err := c.resolvedFilm()
	if err != nil {
		return false, err
	}
	added, err := c.favs.Toggle(ctx, film)
	if err != nil {
		return false, fmt.Errorf("toggle favorite %d: %w", film.ID, err)
	}
	return added, nil
}

// Share sends the resolved film's title and overview to the sharer. The
// sharer's outcome is logged, not returned.
func (c *Controller) Share(ctx context.Context) (ShareRequest, error) {
	film, err := c.resolvedFilm()
	if err != nil {
		return ShareRequest{}, err
	}
	req := ShareRequest{Title: film.Title, Message: film.Overview}
	if c.sharer != nil {
		if err := c.sharer.Share(ctx, req); err != nil {
			c.logger.Printf("filmdetail: share of film %d failed: %v", film.ID, err)
		}
	}
	return req, nil
}

func (c *Controller) resolvedFilm() (domain.Film, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return domain.Film{}, ErrUnmounted
	}
	if c.state != Resolved {
		return domain.Film{}, ErrNotResolved
	}
	return c.film, nil
}

func (c *Controller) startFetchLocked() {
	c.state = Loading
	c.err = nil
	c.attempt++
	c.settled = make(chan struct{})
	go c.fetch(c.life, c.attempt)
}

func (c *Controller) fetch(ctx context.Context, attempt int) {
	film, err := c.fetcher.FetchDetail(ctx, c.filmID)
	if err == nil {
		switch film.ID {
		case 0:
			film.ID = c.filmID
		case c.filmID:
		default:
			err = fmt.Errorf("%w: requested %d, got %d", ErrFilmMismatch, c.filmID, film.ID)
		}
	}

	c.mu.Lock()
	if c.unmounted || attempt != c.attempt {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.logger.Printf("filmdetail: fetch film %d failed: %v", c.filmID, err)
		c.state = Failed
		c.err = err
		c.settleLocked()
		c.mu.Unlock()
		return
	}
	c.state = Resolved
	c.film = film
	c.settleLocked()
	c.mu.Unlock()

	c.publish(film)
}

func (c *Controller) publish(film domain.Film) {
	if c.host == nil {
		return
	}
	c.host.SetParams(Params{Share: c.Share, Film: film})
}

func (c *Controller) settleLocked() {
	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state}
	switch c.state {
	case Resolved:
		film := c.film
		snap.Film = &film
	case Failed:
		snap.Err = c.err
	}
	return snap
}
