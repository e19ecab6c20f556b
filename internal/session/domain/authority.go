package domain

// AuthorityDecision is the remote authority's answer to a refresh-token validation.
// RefreshToken is non-empty when the authority rotated the credential.
type AuthorityDecision struct {
	Accepted     bool
	Approved     bool
	Role         Role
	RefreshToken string
}
