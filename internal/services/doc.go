// Package services talks to the Spotify Web API on behalf of the engine.
//
// spotdl takes a Spotify client id and secret to resolve links. [CredentialsVerifier] checks a pair with a
// client-credentials token request before it is written to the config, so a typo fails at setup instead
// of inside every metadata fetch.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrMissingCredentials] : client id or secret empty
//   - [shared.ErrInvalidCredentials] : the token endpoint rejected the pair
package services
