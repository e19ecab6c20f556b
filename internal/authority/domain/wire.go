package domain

// RefreshPath is the authority's refresh-token validation endpoint.
const RefreshPath = "/v1/sessions/refresh"

// RefreshRequest is the body of POST RefreshPath.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is the 200 body of POST RefreshPath. RefreshToken is set only when the credential was rotated.
type RefreshResponse struct {
	Accepted     bool   `json:"accepted"`
	Approved     bool   `json:"approved"`
	Role         string `json:"role,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ErrorResponse is the body of non-200 responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
