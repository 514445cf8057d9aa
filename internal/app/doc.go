// Package app is the application layer of the ranking core.
//
// VoteProcessor turns a verdict on a pair into a persisted match and an atomic
// rating change. Leaderboard derives ranks, search results and recent deltas
// from the store on every call. Service is the facade the HTTP adapter talks to
// and Reconciler repairs matches whose rating change never landed.
// Everything here depends on domain interfaces only.
package app
