// Package auth mints and verifies session tokens.
//
// A session token is an HS256-signed JWT carrying the caller's internal user id, Spotify account id
// and optional email, with a one hour lifetime. Verification failures are reported as distinct
// sentinel errors ([ErrMalformedToken], [ErrSignatureInvalid], [ErrTokenExpired], [ErrIncompleteClaims])
// so callers can log the cause while answering with a single message.
//
// [Issuer.Recognizes] tells a token of this shape apart from an opaque upstream access token
// without verifying it.
//
// Tokens are stateless. A [Denylist] keyed by token id makes logout possible without a session table.
package auth
