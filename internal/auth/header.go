package auth

// Authorization header schemes. The posts and users API expects Token; the
// upload-oriented classification endpoint expects Bearer.
const (
	SchemeToken  = "Token"
	SchemeBearer = "Bearer"
)

// HeaderValue formats an Authorization header value for token.
func HeaderValue(scheme, token string) string {
	if scheme == "" {
		scheme = SchemeToken
	}
	return scheme + " " + token
}
