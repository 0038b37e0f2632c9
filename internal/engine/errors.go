package engine

import "errors"

// ErrProfileInactive is returned when a scrape is requested for a
// profile whose scraping has been switched off
var ErrProfileInactive = errors.New("profile is not active for scraping")
