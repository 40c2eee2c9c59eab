package kitsu

import (
	"net/url"
	"strings"
)

const defaultBaseURL = "https://kitsu.io"

// Pages builds links to pages on the Kitsu website
type Pages struct {
	baseURL string
}

// NewPages creates a page builder for baseURL, or the public site when empty
func NewPages(baseURL string) Pages {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return Pages{baseURL: baseURL}
}

// AnimePageURL returns the page of the anime with the given slug
func (p Pages) AnimePageURL(slug string) string {
	return p.baseURL + "/anime/" + url.PathEscape(slug)
}

// DashboardURL returns the site's front page
func (p Pages) DashboardURL() string {
	return p.baseURL
}

// ProfileURL returns a user's profile page
func (p Pages) ProfileURL(username string) string {
	return p.baseURL + "/users/" + url.PathEscape(username)
}

// RecommendationsURL returns the signed-in user's recommendations page
func (p Pages) RecommendationsURL() string {
	return p.baseURL + "/recommendations"
}

// UpcomingAnimeURL returns the list of anime that have not aired yet
func (p Pages) UpcomingAnimeURL() string {
	return p.baseURL + "/anime/upcoming"
}
