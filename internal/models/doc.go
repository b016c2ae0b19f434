// Package models defines the domain entities persisted by the playr backend.
//
// Persistent entities:
//   - [User] : one end-user linked to a Spotify account. The Spotify id is the natural external key
//     and the internal id is assigned by the record store and never changes.
//   - [Favorite] : a track, playlist or lyrics entry a user marked as favorite.
//   - [Playlist] : a playlist created on Spotify through the API, kept locally by its Spotify id.
//   - [Lyrics] : lyrics cached per track and artist name so repeated lookups skip the lyrics API.
//
// Entities keep their fields private and expose getters, with setters only where a value may change after creation.
// Every entity implements [Model].
package models
