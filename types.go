package postcache

import "time"

// Post is a single entry of the remote posts collection.
//
// Optimistic is set on entries created locally whose write has not been
// acknowledged by the remote collection yet. Their ID is a temporary negative
// value until the confirmed record replaces them.
type Post struct {
	ID         int    `json:"id"`
	UserID     int    `json:"userId"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Optimistic bool   `json:"optimistic,omitempty"`
}

// PostInput carries the caller-provided fields of a new post.
// UserID is optional; zero falls back to the selected user, then to 1.
type PostInput struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int    `json:"userId,omitempty"`
}

// User is read-only reference data; the store never mutates it.
type User struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Phone    string  `json:"phone,omitempty"`
	Website  string  `json:"website,omitempty"`
	Address  Address `json:"address"`
	Company  Company `json:"company"`
}

// Address is the postal part of a user profile.
type Address struct {
	Street  string `json:"street"`
	Suite   string `json:"suite"`
	City    string `json:"city"`
	Zipcode string `json:"zipcode"`
	Geo     Geo    `json:"geo"`
}

// Geo holds coordinates as the remote API sends them (strings).
type Geo struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// Company is the employer part of a user profile.
type Company struct {
	Name        string `json:"name"`
	CatchPhrase string `json:"catchPhrase"`
	BS          string `json:"bs"`
}

// Comment belongs to exactly one post.
type Comment struct {
	ID     int    `json:"id"`
	PostID int    `json:"postId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Body   string `json:"body"`
}

// Collection names one of the cached collections.
type Collection string

const (
	CollectionPosts    Collection = "posts"
	CollectionUsers    Collection = "users"
	CollectionComments Collection = "comments"
)

// FetchState is the request bookkeeping kept per collection.
type FetchState struct {
	Loading bool
	// Err is the message of the last failure, empty when none.
	Err string
	// LastFetch is zero until a fetch succeeds. Unused for comments.
	LastFetch time.Time
}

// Stats is the derived summary returned by Store.PostsStats.
type Stats struct {
	TotalPosts int
	TotalUsers int
	// AveragePostsPerUser is formatted with one decimal place, "0" with no users.
	AveragePostsPerUser string
	// MostActiveUser is nil when no users are loaded.
	MostActiveUser *User
}

// State is a point-in-time copy of everything the store holds.
// Slices and maps are owned by the receiver.
type State struct {
	Posts          []Post
	Users          []User
	Comments       map[int][]Comment
	SelectedUserID int

	PostsFetch    FetchState
	UsersFetch    FetchState
	CommentsFetch FetchState
}

// Fetch returns the bookkeeping for c.
func (s State) Fetch(c Collection) FetchState {
	switch c {
	case CollectionPosts:
		return s.PostsFetch
	case CollectionUsers:
		return s.UsersFetch
	case CollectionComments:
		return s.CommentsFetch
	default:
		return FetchState{}
	}
}
