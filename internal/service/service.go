// Package service contains the business rules of the console.
//
// The console owns no records: every collection lives behind the Blanko
// REST API. What remains for this layer is the part the API cannot do for
// the browser: validating input before a round-trip, aggregating several
// calls into one page model, and keeping local stores in step after a
// write.
//
//	Handler (HTTP layer)     → parses requests, renders pages
//	Service (business layer) → validates, aggregates, orchestrates
//	api.Client (data layer)  → talks to the REST API
//
// Each service depends on a small interface declaring only the client
// methods it calls, so tests pass a hand-written fake instead of a server.
package service

import "github.com/bytetopia/blanko-console/internal/apperror"

// Paging limits shared by every list page.
const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// clampPage normalises a requested page and limit to something the API
// accepts.
func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return page, limit
}

func requireID(resource string, id int64) error {
	if id <= 0 {
		return apperror.ValidationFailed("id", "invalid "+resource+" id")
	}
	return nil
}
