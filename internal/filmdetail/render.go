package filmdetail

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Clark-Hu/moviesandme/internal/domain"
	"github.com/Clark-Hu/moviesandme/internal/favorites"
	"github.com/Clark-Hu/moviesandme/internal/tmdb"
)

// Icon and animation names understood by the client.
const (
	IconFavorite       = "ic_favorite"
	IconFavoriteBorder = "ic_favorite_border"
	AnimationEnlarge   = "enlarge"
	AnimationShrink    = "shrink"
)

// Failure codes shown with the error view.
const (
	FailureNotFound    = "NOT_FOUND"
	FailureUnavailable = "UNAVAILABLE"
)

const listSeparator = " / "

// ImageResolver turns a relative image path into an absolute URL.
type ImageResolver interface {
	ImageURL(path string) string
}

// Description is everything the client needs to draw the screen.
type Description struct {
	State         string     `json:"state"`
	Content       *Content   `json:"content,omitempty"`
	Loading       bool       `json:"loading"`
	Error         *ErrorView `json:"error,omitempty"`
	FloatingShare bool       `json:"floatingShare"`
	HeaderShare   bool       `json:"headerShare"`
}

// Content is the scrollable film detail.
type Content struct {
	FilmID      int64             `json:"filmId"`
	BackdropURL string            `json:"backdropUrl,omitempty"`
	Title       string            `json:"title"`
	Overview    string            `json:"overview"`
	Favorite    FavoriteIndicator `json:"favorite"`
	ReleaseLine string            `json:"releaseLine"`
	VoteLine    string            `json:"voteLine"`
	VoteCount   string            `json:"voteCountLine"`
	BudgetLine  string            `json:"budgetLine"`
	GenresLine  string            `json:"genresLine"`
	Companies   string            `json:"companiesLine"`
}

// FavoriteIndicator is the favorite button. Animation is what the button does
// on its next press.
type FavoriteIndicator struct {
	Favorited bool   `json:"favorited"`
	Icon      string `json:"icon"`
	Animation string `json:"animation"`
}

// ErrorView replaces the loading indicator after a failed fetch.
type ErrorView struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Render maps a view snapshot and the current favorites to a Description. It
// has no side effects.
func Render(view Snapshot, favs favorites.Set, platform domain.Platform, images ImageResolver) Description {
	desc := Description{
		State:   view.State.String(),
		Loading: view.State == Loading,
	}
	if view.State == Failed {
		desc.Error = errorView(view.Err)
	}
	if view.Film != nil && view.State == Resolved {
		desc.Content = content(*view.Film, favs.Contains(view.Film.ID), images)
		desc.FloatingShare = platform.FloatingShare()
		desc.HeaderShare = platform.HeaderShare()
	}
	return desc
}

func content(film domain.Film, favorited bool, images ImageResolver) *Content {
	c := &Content{
		FilmID:      film.ID,
		Title:       film.Title,
		Overview:    film.Overview,
		Favorite:    favoriteIndicator(favorited),
		ReleaseLine: releaseLine(film.ReleaseDate),
		VoteLine:    "Note : " + strconv.FormatFloat(film.VoteAverage, 'f', -1, 64) + " / 10",
		VoteCount:   "Nombre de votes : " + strconv.FormatInt(film.VoteCount, 10),
		BudgetLine:  "Budget : " + FormatBudget(film.Budget),
		GenresLine:  "Genre(s) : " + strings.Join(film.GenreNames(), listSeparator),
		Companies:   "Companie(s) : " + strings.Join(film.CompanyNames(), listSeparator),
	}
	if images != nil {
		c.BackdropURL = images.ImageURL(film.BackdropPath)
	}
	return c
}

func favoriteIndicator(favorited bool) FavoriteIndicator {
	if favorited {
		return FavoriteIndicator{Favorited: true, Icon: IconFavorite, Animation: AnimationShrink}
	}
	return FavoriteIndicator{Favorited: false, Icon: IconFavoriteBorder, Animation: AnimationEnlarge}
}

func releaseLine(date domain.Date) string {
	if date.IsZero() {
		return "Date de sortie inconnue"
	}
	return "Sorti le " + date.Format("02/01/2006")
}

// FormatBudget renders an amount with comma thousands separators and a
// trailing currency sign, e.g. "160,000,000 $".
func FormatBudget(amount int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", amount) + " $"
}

func errorView(err error) *ErrorView {
	if errors.Is(err, tmdb.ErrNotFound) {
		return &ErrorView{
			Code:      FailureNotFound,
			Message:   "Ce film est introuvable.",
			Retryable: true,
		}
	}
	return &ErrorView{
		Code:      FailureUnavailable,
		Message:   "Impossible de charger le film. Vérifiez votre connexion.",
		Retryable: true,
	}
}
