package security

// AccessTokenVerifier checks a bearer token and extracts its claims.
// Implementations reject expired tokens with ErrTokenExpired and anything
// unparseable or tampered with ErrTokenInvalid.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (TokenClaims, error)
}
