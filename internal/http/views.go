package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/moviesandme/internal/domain"
	"github.com/Clark-Hu/moviesandme/internal/filmdetail"
	"github.com/Clark-Hu/moviesandme/internal/session"
)

const maxAwait = 10 * time.Second

type openViewRequest struct {
	IDFilm   int64  `json:"idFilm"`
	Platform string `json:"platform"`
}

type viewResponse struct {
	ID       string                 `json:"id"`
	IDFilm   int64                  `json:"idFilm"`
	Platform domain.Platform        `json:"platform"`
	Render   filmdetail.Description `json:"render"`
}

type toggleResponse struct {
	Favorited bool         `json:"favorited"`
	View      viewResponse `json:"view"`
}

type favoritesResponse struct {
	Items []domain.Film `json:"items"`
}

func (s *Server) handleOpenView(w http.ResponseWriter, r *http.Request) {
	var req openViewRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.IDFilm <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "idFilm must be a positive integer")
		return
	}
	platform, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "platform must be one of {ios, android}")
		return
	}

	view, err := s.views.Open(r.Context(), req.IDFilm, platform)
	if err != nil {
		s.logger.Printf("open view for film %d failed: %v", req.IDFilm, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to open view")
		return
	}

	resp, err := s.describe(r.Context(), view)
	if err != nil {
		s.logger.Printf("render view %s failed: %v", view.ID, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render view")
		return
	}
	w.Header().Set("Location", "/views/"+url.PathEscape(view.ID))
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), s.awaitTimeout())
		// A timeout still renders the current (loading) state.
		_, _ = view.Controller.Await(ctx)
		cancel()
	}

	s.respondView(w, r, http.StatusOK, view)
}

func (s *Server) handleCloseView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "viewID")
	if err := s.views.Close(id); err != nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "View not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}

	favorited, err := view.Controller.ToggleFavorite(r.Context())
	if err != nil {
		s.respondControllerError(w, view, "toggle favorite", err)
		return
	}

	resp, err := s.describe(r.Context(), view)
	if err != nil {
		s.logger.Printf("render view %s failed: %v", view.ID, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render view")
		return
	}
	s.respondJSON(w, http.StatusOK, toggleResponse{Favorited: favorited, View: resp})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}

	share := view.Controller.Share
	if view.Controller.Platform().HeaderShare() {
		// The header action invokes the capability registered with the host.
		if params, ok := view.Host.Params(); ok && params.Share != nil {
			share = params.Share
		}
	}

	req, err := share(r.Context())
	if err != nil {
		s.respondControllerError(w, view, "share", err)
		return
	}
	s.respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	if err := view.Controller.Retry(); err != nil {
		s.respondControllerError(w, view, "retry", err)
		return
	}
	s.respondView(w, r, http.StatusAccepted, view)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	set, err := s.views.Favorites().Snapshot(r.Context())
	if err != nil {
		s.logger.Printf("list favorites error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list favorites")
		return
	}
	s.respondJSON(w, http.StatusOK, favoritesResponse{Items: set.Films()})
}

func (s *Server) lookupView(w http.ResponseWriter, r *http.Request) (*session.View, bool) {
	id := chi.URLParam(r, "viewID")
	view, err := s.views.Get(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "View not found")
		return nil, false
	}
	return view, true
}

func (s *Server) respondView(w http.ResponseWriter, r *http.Request, status int, view *session.View) {
	resp, err := s.describe(r.Context(), view)
	if err != nil {
		s.logger.Printf("render view %s failed: %v", view.ID, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render view")
		return
	}
	s.respondJSON(w, status, resp)
}

// describe renders a view against a fresh favorites snapshot.
func (s *Server) describe(ctx context.Context, view *session.View) (viewResponse, error) {
	set, err := s.views.Favorites().Snapshot(ctx)
	if err != nil {
		return viewResponse{}, err
	}
	ctrl := view.Controller
	return viewResponse{
		ID:       view.ID,
		IDFilm:   ctrl.FilmID(),
		Platform: ctrl.Platform(),
		Render:   filmdetail.Render(ctrl.Snapshot(), set, ctrl.Platform(), s.images),
	}, nil
}

func (s *Server) respondControllerError(w http.ResponseWriter, view *session.View, action string, err error) {
	switch {
	case errors.Is(err, filmdetail.ErrNotResolved):
		s.respondError(w, http.StatusConflict, "NOT_RESOLVED", "Film is not loaded yet")
	case errors.Is(err, filmdetail.ErrNotRetryable):
		s.respondError(w, http.StatusConflict, "NOT_RETRYABLE", "Only a failed view can be retried")
	case errors.Is(err, filmdetail.ErrUnmounted):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "View not found")
	default:
		s.logger.Printf("%s on view %s failed: %v", action, view.ID, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action)
	}
}

func (s *Server) awaitTimeout() time.Duration {
	timeout := maxAwait
	if write := time.Duration(s.cfg.WriteTimeoutSecs) * time.Second; write > time.Second && write-time.Second < timeout {
		timeout = write - time.Second
	}
	return timeout
}
