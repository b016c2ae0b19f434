// Package server provides HTTP routing, middleware, and the handlers of the playr API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] implements it with
// a chi mux. Global middleware is added with [Router.Use]; per-route middleware travels on the [Route].
//
// # Handler Interface
//
// Handlers implement [Handler] by returning their [Route] list, so each handler keeps its own route
// definitions, including which routes require a session token.
//
// # Authentication
//
// [Authenticator.RequireAuth] gates protected routes:
//  1. no bearer header: 401 "Not authorized, no token provided"
//  2. token fails verification: 401 "Token verification failed" ("Invalid token" when the user id claim is missing)
//  3. user row missing: 401 "User not found"
//  4. otherwise an [auth.Identity] is attached to the request context
//
// # OAuth Flow
//
// [AuthHandler] redirects to the provider consent page, completes the authorization-code callback
// (exchange, profile, user upsert, session token) and redirects to the frontend dashboard with the
// credentials in the URL fragment. Callback failures redirect to the frontend login view with
// error=missing_code or error=authentication_error.
//
// Refresh answers 400 "Invalid refresh token." when the provider rejects the refresh token and
// 500 "Failed to refresh token." for any other failure.
//
// # Upstream Credentials
//
// The catalog passthroughs and playlist writes call the Web API with the caller's own access token.
// An opaque bearer token is forwarded as is. A bearer token shaped like a session token is never
// forwarded: it is authenticated like any protected route, revocation included, and swapped for the
// access token cached on the user row. Without auth.persist_upstream_token or a cached token it
// answers 401 "Access token is required."
//
// # Playlists and Lyrics
//
// [PlaylistHandler] creates, renames and deletes playlists on Spotify and keeps a local record of
// each. [LyricsHandler] serves lyrics from the lyrics table and falls back to the lyrics API on a
// miss; without an API key only cached lyrics are served.
//
// # Deployment
//
// Client addresses come from the connection unless server.trust_proxy is set, in which case
// X-Forwarded-For and X-Real-IP are honored. The OAuth state cookie is Secure on TLS connections
// and always when auth.secure_cookies is set.
package server
