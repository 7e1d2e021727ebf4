package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/moviesandme/internal/config"
	"github.com/Clark-Hu/moviesandme/internal/domain"
	"github.com/Clark-Hu/moviesandme/internal/favorites"
	"github.com/Clark-Hu/moviesandme/internal/session"
	"github.com/Clark-Hu/moviesandme/internal/tmdb"
)

// fakeCatalog serves films from a map and counts fetches.
type fakeCatalog struct {
	mu    sync.Mutex
	films map[int64]domain.Film
	fail  error
	calls int
}

func (f *fakeCatalog) FetchDetail(ctx context.Context, id int64) (domain.Film, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return domain.Film{}, f.fail
	}
	film, ok := f.films[id]
	if !ok {
		return domain.Film{}, tmdb.ErrNotFound
	}
	return film, nil
}

func (f *fakeCatalog) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeCatalog) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func inceptionFilm() domain.Film {
	return domain.Film{
		ID:                  27205,
		Title:               "Inception",
		Overview:            "A thief who steals corporate secrets through the use of dream-sharing technology…",
		BackdropPath:        "/inception.jpg",
		ReleaseDate:         domain.NewDate(2010, time.July, 16),
		VoteAverage:         8.4,
		VoteCount:           31000,
		Budget:              160000000,
		Genres:              []domain.Genre{{Name: "Action"}},
		ProductionCompanies: []domain.Company{{Name: "Syncopy"}},
	}
}

func buildTestServer(tb testing.TB, favs favorites.Store, catalog *fakeCatalog) *Server {
	tb.Helper()
	cfg := config.Config{
		Port:             "0",
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		IdleTimeoutSecs:  60,
	}
	logger := log.New(io.Discard, "", 0)
	registry := session.NewRegistry(session.Options{
		Favorites: favs,
		Fetcher:   catalog,
		Logger:    logger,
	})
	tb.Cleanup(registry.CloseAll)

	srv := New(cfg, nil, registry, tmdb.NewImageResolver(""), logger)
	// Replace chi router to avoid default middleware noise.
	srv.router = chi.NewRouter()
	srv.registerRoutes()
	return srv
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{films: map[int64]domain.Film{27205: inceptionFilm()}}
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) viewResponse {
	t.Helper()
	var resp viewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode view: %v (body=%s)", err, rec.Body.String())
	}
	return resp
}

func openAndWait(t *testing.T, srv *Server, idFilm, platform string) viewResponse {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/views", `{"idFilm":`+idFilm+`,"platform":"`+platform+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d, want 201 (body=%s)", rec.Code, rec.Body.String())
	}
	opened := decodeView(t, rec)
	if loc := rec.Header().Get("Location"); loc != "/views/"+opened.ID {
		t.Fatalf("Location = %q", loc)
	}
	rec = doRequest(t, srv, http.MethodGet, "/views/"+opened.ID+"?wait=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	return decodeView(t, rec)
}

func TestOpenViewValidation(t *testing.T) {
	srv := buildTestServer(t, favorites.NewMemoryStore(), newCatalog())
	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing id", `{"platform":"ios"}`, http.StatusUnprocessableEntity},
		{"negative id", `{"idFilm":-4,"platform":"ios"}`, http.StatusUnprocessableEntity},
		{"bad platform", `{"idFilm":1,"platform":"web"}`, http.StatusUnprocessableEntity},
		{"string id", `{"idFilm":"1","platform":"ios"}`, http.StatusUnprocessableEntity},
		{"malformed", `{"idFilm":1,,}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"idFilm":1,"platform":"ios","extra":true}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/views", c.body)
			if rec.Code != c.want {
				t.Fatalf("status = %d, want %d (body=%s)", rec.Code, c.want, rec.Body.String())
			}
		})
	}
}

func TestOpenViewFetchesAndRendersAndroid(t *testing.T) {
	catalog := newCatalog()
	srv := buildTestServer(t, favorites.NewMemoryStore(), catalog)

	view := openAndWait(t, srv, "27205", "android")
	if view.Render.State != "resolved" {
		t.Fatalf("state = %s, want resolved", view.Render.State)
	}
	if view.Render.Loading {
		t.Fatalf("loading indicator must be hidden once resolved")
	}
	content := view.Render.Content
	if content == nil || content.Title != "Inception" {
		t.Fatalf("content = %+v", content)
	}
	if content.BudgetLine != "Budget : 160,000,000 $" {
		t.Fatalf("budget line = %q", content.BudgetLine)
	}
	if content.BackdropURL != "https://image.tmdb.org/t/p/w300/inception.jpg" {
		t.Fatalf("backdrop = %q", content.BackdropURL)
	}
	if !view.Render.FloatingShare || view.Render.HeaderShare {
		t.Fatalf("android share placement floating=%v header=%v", view.Render.FloatingShare, view.Render.HeaderShare)
	}
	if catalog.fetches() != 1 {
		t.Fatalf("fetches = %d, want 1", catalog.fetches())
	}
}

func TestFavoriteToggleAndReuse(t *testing.T) {
	catalog := newCatalog()
	srv := buildTestServer(t, favorites.NewMemoryStore(), catalog)

	view := openAndWait(t, srv, "27205", "ios")
	rec := doRequest(t, srv, http.MethodPost, "/views/"+view.ID+"/favorite", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d (body=%s)", rec.Code, rec.Body.String())
	}
	var toggled toggleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &toggled); err != nil {
		t.Fatalf("decode toggle: %v", err)
	}
	if !toggled.Favorited || !toggled.View.Render.Content.Favorite.Favorited {
		t.Fatalf("toggle should favorite the film: %+v", toggled)
	}

	// A second view of the same film is served from favorites.
	second := openAndWait(t, srv, "27205", "ios")
	if catalog.fetches() != 1 {
		t.Fatalf("fetches = %d, favorites must not be refetched", catalog.fetches())
	}
	if !second.Render.Content.Favorite.Favorited {
		t.Fatalf("second view should show the favorited state")
	}
	if !second.Render.HeaderShare || second.Render.FloatingShare {
		t.Fatalf("ios share belongs in the header")
	}

	rec = doRequest(t, srv, http.MethodGet, "/favorites", "")
	var favs favoritesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &favs); err != nil {
		t.Fatalf("decode favorites: %v", err)
	}
	if len(favs.Items) != 1 || favs.Items[0].ID != 27205 {
		t.Fatalf("favorites = %+v", favs.Items)
	}

	rec = doRequest(t, srv, http.MethodPost, "/views/"+second.ID+"/favorite", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &toggled); err != nil {
		t.Fatalf("decode toggle: %v", err)
	}
	if toggled.Favorited {
		t.Fatalf("second toggle should remove the favorite")
	}
	rec = doRequest(t, srv, http.MethodGet, "/views/"+view.ID, "")
	if decodeView(t, rec).Render.Content.Favorite.Favorited {
		t.Fatalf("first view must reflect the removal on its next render")
	}
}

func TestShareReturnsTitleAndOverview(t *testing.T) {
	for _, platform := range []string{"ios", "android"} {
		t.Run(platform, func(t *testing.T) {
			srv := buildTestServer(t, favorites.NewMemoryStore(), newCatalog())
			view := openAndWait(t, srv, "27205", platform)

			rec := doRequest(t, srv, http.MethodPost, "/views/"+view.ID+"/share", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("share status = %d", rec.Code)
			}
			var req struct {
				Title   string `json:"title"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &req); err != nil {
				t.Fatalf("decode share: %v", err)
			}
			film := inceptionFilm()
			if req.Title != film.Title || req.Message != film.Overview {
				t.Fatalf("share = %+v", req)
			}
		})
	}
}

func TestFailedFetchAndRetry(t *testing.T) {
	catalog := newCatalog()
	catalog.setFail(errors.New("upstream down"))
	srv := buildTestServer(t, favorites.NewMemoryStore(), catalog)

	view := openAndWait(t, srv, "27205", "android")
	if view.Render.State != "failed" || view.Render.Error == nil || view.Render.Error.Code != "UNAVAILABLE" {
		t.Fatalf("render = %+v", view.Render)
	}
	if view.Render.Loading || view.Render.Content != nil {
		t.Fatalf("failed views show neither spinner nor content")
	}

	rec := doRequest(t, srv, http.MethodPost, "/views/"+view.ID+"/favorite", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("toggle on failed view status = %d, want 409", rec.Code)
	}

	catalog.setFail(nil)
	rec = doRequest(t, srv, http.MethodPost, "/views/"+view.ID+"/retry", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("retry status = %d, want 202", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/views/"+view.ID+"?wait=true", "")
	if got := decodeView(t, rec).Render.State; got != "resolved" {
		t.Fatalf("state after retry = %s", got)
	}

	rec = doRequest(t, srv, http.MethodPost, "/views/"+view.ID+"/retry", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("retry on resolved view status = %d, want 409", rec.Code)
	}
}

func TestUnknownFilmRendersNotFound(t *testing.T) {
	srv := buildTestServer(t, favorites.NewMemoryStore(), newCatalog())
	view := openAndWait(t, srv, "1", "ios")
	if view.Render.Error == nil || view.Render.Error.Code != "NOT_FOUND" {
		t.Fatalf("render = %+v", view.Render)
	}
}

func TestCloseView(t *testing.T) {
	srv := buildTestServer(t, favorites.NewMemoryStore(), newCatalog())
	view := openAndWait(t, srv, "27205", "ios")

	rec := doRequest(t, srv, http.MethodDelete, "/views/"+view.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	for _, path := range []string{"/views/" + view.ID, "/views/" + view.ID + "/share"} {
		method := http.MethodGet
		if strings.HasSuffix(path, "/share") {
			method = http.MethodPost
		}
		if rec := doRequest(t, srv, method, path, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s status = %d, want 404", method, path, rec.Code)
		}
	}
	if rec := doRequest(t, srv, http.MethodDelete, "/views/"+view.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHealthzMemory(t *testing.T) {
	srv := buildTestServer(t, favorites.NewMemoryStore(), newCatalog())
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"favorites":"memory"`)) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestAwaitTimeout(t *testing.T) {
	srv := &Server{cfg: config.Config{WriteTimeoutSecs: 5}}
	if got := srv.awaitTimeout(); got != 4*time.Second {
		t.Fatalf("awaitTimeout() = %s, want 4s", got)
	}
	srv.cfg.WriteTimeoutSecs = 60
	if got := srv.awaitTimeout(); got != maxAwait {
		t.Fatalf("awaitTimeout() = %s, want %s", got, maxAwait)
	}
}
