package postcache

import "context"

// FetchAPI exposes the operations that read from the remote collection.
type FetchAPI interface {
	FetchPosts(ctx context.Context, force bool) ([]Post, error)
	FetchUsers(ctx context.Context, force bool) ([]User, error)
	FetchComments(ctx context.Context, postID int) ([]Comment, error)
	RetryFetch(ctx context.Context, kind Collection) error
}

// MutationAPI exposes optimistic writes.
type MutationAPI interface {
	CreatePost(ctx context.Context, in PostInput) (Post, error)
	DeletePost(ctx context.Context, postID int) error
}

// QueryAPI exposes synchronous reads over the cached collections.
type QueryAPI interface {
	FilteredPosts() []Post
	UserByID(id int) (User, bool)
	PostByID(id int) (Post, bool)
	PostsStats() Stats
	SelectedUserID() int
	State() State
}

// ControlAPI exposes filter, error and cache maintenance.
type ControlAPI interface {
	SetSelectedUserID(id int) error
	ClearErrors()
	ClearCache()
	Subscribe(l Listener) (unsubscribe func())
}

// StoreAPI is the full store surface.
type StoreAPI interface {
	FetchAPI
	MutationAPI
	QueryAPI
	ControlAPI
}

var _ StoreAPI = (*Store)(nil)
