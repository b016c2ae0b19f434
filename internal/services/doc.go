// Package services talks to the Spotify accounts service and Web API.
//
// # OAuth
//
// [SpotifyService] wraps an [oauth2.Config] pointed at the configured authorize and token endpoints.
// It implements [OAuthService]: building the consent URL, exchanging an authorization code, refreshing
// an access token, and reading the caller's profile. Client credentials are always sent as a Basic-auth
// header so a rejected request is never retried with the other auth style.
//
// Every outbound call runs through an [http.Client] bounded by the configured timeout. The client is
// handed to the oauth2 package through [oauth2.HTTPClient] on the request context.
//
// # Web API passthrough
//
// [CatalogService] covers the search and listening-history endpoints. Those responses are returned as
// raw JSON and never reshaped.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrTokenExchange] : the authorization code was rejected or the exchange failed
//   - [shared.ErrInvalidRefreshToken] : the token endpoint answered a refresh with a 4xx
//   - [shared.ErrRefreshFailed] : any other refresh failure, including timeouts
//   - [shared.ErrAPIRequest] : a Web API call failed; [APIError] carries the upstream status
package services
