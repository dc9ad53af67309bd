package testutil

import (
	"net/http"

	id "cashdesk/pkg/domain"
	"cashdesk/pkg/requestcontext"
)

// WithPrincipal adds an authenticated principal to the request context.
// This simulates what the auth middleware does for a valid bearer token.
// If the userID is not a valid UUID, the request is returned unchanged.
func WithPrincipal(req *http.Request, userID, fullName string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), parsed, fullName))
}
