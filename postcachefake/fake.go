package postcachefake

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/goforj/postcache"
)

// Op identifies a remote API call for assertions.
type Op string

const (
	OpListPosts    Op = "list_posts"
	OpListUsers    Op = "list_users"
	OpListComments Op = "list_comments"
	OpCreatePost   Op = "create_post"
	OpDeletePost   Op = "delete_post"
)

// Fake is a deterministic in-memory remote collection plus assertion helpers
// for tests. It implements postcache.API.
type Fake struct {
	mu       sync.Mutex
	posts    []postcache.Post
	users    []postcache.User
	comments map[int][]postcache.Comment
	nextID   int
	failures map[Op]error
	hooks    map[Op]func()
	counts   map[Op]map[string]int
}

var _ postcache.API = (*Fake)(nil)

// New creates an empty Fake. Created posts get ids starting at 101.
func New() *Fake {
	return &Fake{
		comments: make(map[int][]postcache.Comment),
		nextID:   101,
		failures: make(map[Op]error),
		hooks:    make(map[Op]func()),
		counts:   make(map[Op]map[string]int),
	}
}

// SeedPosts replaces the remote posts collection.
func (f *Fake) SeedPosts(posts ...postcache.Post) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = slices.Clone(posts)
	return f
}

// SeedUsers replaces the remote users collection.
func (f *Fake) SeedUsers(users ...postcache.User) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = slices.Clone(users)
	return f
}

// SeedComments sets the comments served for postID.
func (f *Fake) SeedComments(postID int, comments ...postcache.Comment) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[postID] = slices.Clone(comments)
	return f
}

// SetNextID sets the id the next CreatePost returns.
func (f *Fake) SetNextID(id int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID = id
	return f
}

// Fail makes every subsequent op call return err. A nil err clears it.
func (f *Fake) Fail(op Op, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
	} else {
		f.failures[op] = err
	}
	return f
}

// OnCall runs fn at the start of every op call, before the outcome is decided.
// Tests use it to observe the store while a request is in flight.
func (f *Fake) OnCall(op Op, fn func()) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fn == nil {
		delete(f.hooks, op)
	} else {
		f.hooks[op] = fn
	}
	return f
}

// Reset clears recorded counts.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
}

// AssertCalled verifies op was called for key the expected number of times.
// Keys are post ids for comment, delete calls and the title for creates;
// list calls use the empty key.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures op was never called.
func (f *Fake) AssertNotCalled(t *testing.T, op Op) {
	t.Helper()
	if got := f.Total(op); got != 0 {
		t.Fatalf("expected %s not called, got %d", op, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

// Posts returns the remote posts collection.
func (f *Fake) Posts() []postcache.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.posts)
}

func (f *Fake) ListPosts(context.Context) ([]postcache.Post, error) {
	if err := f.begin(OpListPosts, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.posts), nil
}

func (f *Fake) ListUsers(context.Context) ([]postcache.User, error) {
	if err := f.begin(OpListUsers, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.users), nil
}

func (f *Fake) ListComments(_ context.Context, postID int) ([]postcache.Comment, error) {
	if err := f.begin(OpListComments, strconv.Itoa(postID)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.comments[postID])
	if out == nil {
		out = []postcache.Comment{}
	}
	return out, nil
}

func (f *Fake) CreatePost(_ context.Context, in postcache.PostInput) (postcache.Post, error) {
	if err := f.begin(OpCreatePost, in.Title); err != nil {
		return postcache.Post{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := postcache.Post{ID: f.nextID, UserID: in.UserID, Title: in.Title, Body: in.Body}
	f.nextID++
	f.posts = append(f.posts, p)
	return p, nil
}

func (f *Fake) DeletePost(_ context.Context, postID int) error {
	if err := f.begin(OpDeletePost, strconv.Itoa(postID)); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = slices.DeleteFunc(f.posts, func(p postcache.Post) bool { return p.ID == postID })
	return nil
}

func (f *Fake) begin(op Op, key string) error {
	f.mu.Lock()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
	hook := f.hooks[op]
	err := f.failures[op]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}
