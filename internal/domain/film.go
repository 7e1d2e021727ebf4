package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format TMDB uses for release dates.
const DateLayout = "2006-01-02"

// Genre is one entry of a film's ordered genre list.
type Genre struct {
	Name string `json:"name"`
}

// Company is one entry of a film's ordered production company list.
type Company struct {
	Name string `json:"name"`
}

// Film represents the full detail record of one movie. Field names follow the
// TMDB payload so records kept in favorites round-trip unchanged.
type Film struct {
	ID                  int64     `json:"id"`
	Title               string    `json:"title"`
	Overview            string    `json:"overview"`
	BackdropPath        string    `json:"backdrop_path"`
	ReleaseDate         Date      `json:"release_date"`
	VoteAverage         float64   `json:"vote_average"`
	VoteCount           int64     `json:"vote_count"`
	Budget              int64     `json:"budget"`
	Genres              []Genre   `json:"genres"`
	ProductionCompanies []Company `json:"production_companies"`
}

// GenreNames returns genre names in their original order.
func (f Film) GenreNames() []string {
	names := make([]string, 0, len(f.Genres))
	for _, g := range f.Genres {
		names = append(names, g.Name)
	}
	return names
}

// CompanyNames returns production company names in their original order.
func (f Film) CompanyNames() []string {
	names := make([]string, 0, len(f.ProductionCompanies))
	for _, c := range f.ProductionCompanies {
		names = append(names, c.Name)
	}
	return names
}

// Date is a calendar day encoded as YYYY-MM-DD. The zero value encodes as "".
type Date struct {
	time.Time
}

// NewDate builds a UTC date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD. Blank input yields the zero date.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
