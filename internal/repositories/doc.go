// Package repositories maps domain entities onto the record store.
//
// Key Implementations:
//   - [UserRepository] : user lookups by internal id and Spotify id, and the race-tolerant [UserRepository.FindOrCreate]
//   - [FavoriteRepository] : per-user favorites keyed by item type and item id
//   - [PlaylistRepository] : local copies of playlists created on Spotify
//   - [LyricsRepository] : the lyrics cache, one row per track and artist name
//
// Repositories hold no state beyond the [store.Store] they wrap, so they are safe for concurrent use.
package repositories
