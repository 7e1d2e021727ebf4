package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/moviesandme/internal/domain"
)

// ErrNotFound is returned when the catalog has no film with the requested id.
var ErrNotFound = errors.New("tmdb: not found")

// DefaultLanguage matches the locale the detail screen is written for.
const DefaultLanguage = "fr-FR"

// Fetcher defines the contract for retrieving a film's full detail record.
type Fetcher interface {
	FetchDetail(ctx context.Context, id int64) (domain.Film, error)
}

// HTTPClient implements Fetcher against the TMDB v3 REST API.
type HTTPClient struct {
	baseURL  *url.URL
	apiKey   string
	language string
	client   *http.Client
	logger   *log.Logger
}

// ClientOptions tunes an HTTPClient. Zero values fall back to defaults.
type ClientOptions struct {
	Language string
	Timeout  time.Duration
	Logger   *log.Logger
}

// NewHTTPClient constructs a TMDB client rooted at baseURL (for example
// https://api.themoviedb.org/3).
func NewHTTPClient(baseURL, apiKey string, opts ClientOptions) (*HTTPClient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	language := opts.Language
	if language == "" {
		language = DefaultLanguage
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse tmdb url: %q is not absolute", baseURL)
	}
	return &HTTPClient{
		baseURL:  parsed,
		apiKey:   apiKey,
		language: language,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// FetchDetail retrieves the detail record for one film id.
func (c *HTTPClient) FetchDetail(ctx context.Context, id int64) (domain.Film, error) {
	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + "/movie/" + strconv.FormatInt(id, 10)
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("language", c.language)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return domain.Film{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Film{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload detailResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return domain.Film{}, fmt.Errorf("decode tmdb detail: %w", err)
		}
		return convertToFilm(payload, c.logger), nil
	case http.StatusNotFound:
		return domain.Film{}, ErrNotFound
	default:
		c.logger.Printf("tmdb: unexpected status %d for film %d", resp.StatusCode, id)
		return domain.Film{}, fmt.Errorf("tmdb: upstream returned %d", resp.StatusCode)
	}
}

type detailResponse struct {
	ID                  int64         `json:"id"`
	Title               string        `json:"title"`
	Overview            *string       `json:"overview"`
	BackdropPath        *string       `json:"backdrop_path"`
	ReleaseDate         *string       `json:"release_date"`
	VoteAverage         float64       `json:"vote_average"`
	VoteCount           int64         `json:"vote_count"`
	Budget              int64         `json:"budget"`
	Genres              []namePayload `json:"genres"`
	ProductionCompanies []namePayload `json:"production_companies"`
}

type namePayload struct {
	Name string `json:"name"`
}

func convertToFilm(payload detailResponse, logger *log.Logger) domain.Film {
	film := domain.Film{
		ID:                  payload.ID,
		Title:               payload.Title,
		Overview:            derefString(payload.Overview),
		BackdropPath:        derefString(payload.BackdropPath),
		VoteAverage:         clamp(payload.VoteAverage, 0, 10),
		VoteCount:           payload.VoteCount,
		Budget:              payload.Budget,
		Genres:              make([]domain.Genre, 0, len(payload.Genres)),
		ProductionCompanies: make([]domain.Company, 0, len(payload.ProductionCompanies)),
	}
	if film.VoteCount < 0 {
		film.VoteCount = 0
	}
	if payload.ReleaseDate != nil {
		date, err := domain.ParseDate(*payload.ReleaseDate)
		if err != nil && logger != nil {
			logger.Printf("tmdb: film %d has unparseable release date %q", payload.ID, *payload.ReleaseDate)
		}
		film.ReleaseDate = date
	}
	for _, g := range payload.Genres {
		film.Genres = append(film.Genres, domain.Genre{Name: g.Name})
	}
	for _, c := range payload.ProductionCompanies {
		film.ProductionCompanies = append(film.ProductionCompanies, domain.Company{Name: c.Name})
	}
	return film
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
