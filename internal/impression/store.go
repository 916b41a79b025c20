package impression

import "context"

// Store persists user and group-member records. UpdateUser must apply fn
// atomically with respect to other writers of the same record and return
// ErrUserNotFound when the id has never been seen.
type Store interface {
	GetUser(ctx context.Context, userID string) (UserRecord, bool, error)
	PutUser(ctx context.Context, rec UserRecord) error
	UpdateUser(ctx context.Context, userID string, fn func(*UserRecord) error) error
	ListUsers(ctx context.Context) ([]UserRecord, error)

	GetMember(ctx context.Context, groupID, userID string) (GroupMemberRecord, bool, error)
	PutMember(ctx context.Context, rec GroupMemberRecord) error
	ListMembers(ctx context.Context, groupID string) ([]GroupMemberRecord, error)

	// Backup writes a point-in-time copy into dir and returns its path.
	Backup(ctx context.Context, dir string) (string, error)
	Close() error
}
