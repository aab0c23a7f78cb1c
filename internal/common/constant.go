package common

const (
	// AuthorizationHeader carries the bearer token on inbound requests.
	AuthorizationHeader = "Authorization"
	// TokenPrefix precedes the token value in AuthorizationHeader.
	TokenPrefix = "Bearer "

	TokenIssuer    = "ALEXBERBO"
	TokenAudience  = "ALEXBERBO_MANAGEMENT"
	AuthoritiesKey = "authorities"

	// MFACodeLength is the number of characters in an emailed MFA code.
	MFACodeLength = 10
)
