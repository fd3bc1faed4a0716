package repository

import "context"

// Store bundles the repositories of one storage backend.
type Store interface {
	Users() UserRepository
	Quests() QuestRepository
	Attempts() AttemptRepository
	Ping(ctx context.Context) error
}
