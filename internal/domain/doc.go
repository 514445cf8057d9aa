// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (entity.go, match.go, vote.go, leaderboard.go, ...) hold shared
// types and the contracts adapters implement. No implementation code, just contracts.
package domain
