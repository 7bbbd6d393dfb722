package postcache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"
)

// Store is the single authority over the cached posts, users and comments.
//
// Reads are synchronous and return copies. Operations that reach the remote
// API block the calling goroutine only; state changes are applied as one
// locked replace each, so readers never observe a partial update.
type Store struct {
	api         API
	slot        SnapshotStore
	snapshotKey string
	freshness   time.Duration
	clock       Clock
	log         *slog.Logger
	observer    Observer

	mu        sync.Mutex
	state     storeState
	version   uint64
	listeners []listenerEntry
	nextSubID uint64
	pending   []State
	notifying bool

	persistMu sync.Mutex
	persisted uint64
}

type storeState struct {
	posts    []Post
	users    []User
	comments map[int][]Comment
	selected int

	postsFetch    FetchState
	usersFetch    FetchState
	commentsFetch FetchState

	// lastTempID counts down from zero; temporary ids are always negative.
	lastTempID int
}

func (st *storeState) fetchState(c Collection) *FetchState {
	switch c {
	case CollectionUsers:
		return &st.usersFetch
	case CollectionComments:
		return &st.commentsFetch
	default:
		return &st.postsFetch
	}
}

// Option customizes a Store.
type Option func(*Store)

// WithSnapshotStore sets the slot the store restores from and persists to.
func WithSnapshotStore(slot SnapshotStore) Option {
	return func(s *Store) {
		s.slot = slot
	}
}

// WithSnapshotKey overrides DefaultSnapshotKey.
func WithSnapshotKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.snapshotKey = key
		}
	}
}

// WithFreshness overrides DefaultFreshness for posts and users.
func WithFreshness(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithClock replaces the wall clock used for freshness bookkeeping.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. Falls back to slog.Default() when unset.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithObserver attaches an observer to receive operation events. Repeated
// calls add observers.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		switch {
		case o == nil:
		case s.observer == nil:
			s.observer = o
		default:
			s.observer = multiObserver{s.observer, o}
		}
	}
}

// New creates a store bound to api and restores the persisted snapshot.
// Without WithSnapshotStore the snapshot lives in process memory.
//
// A snapshot that cannot be decoded is ignored and the store starts empty;
// a slot that cannot be read is an error.
//
// Example: file-backed store
//
//	ctx := context.Background()
//	store, err := postcache.New(ctx, postcache.NewHTTPClient("", nil),
//		postcache.WithSnapshotStore(postcache.NewFileSnapshotStore(ctx, "/tmp/postcache")),
//	)
//	if err != nil {
//		return err
//	}
//	posts, err := store.FetchPosts(ctx, false)
func New(ctx context.Context, api API, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, ErrNilAPI
	}
	s := &Store{
		api:         api,
		snapshotKey: DefaultSnapshotKey,
		freshness:   DefaultFreshness,
		clock:       RealClock{},
		log:         slog.Default(),
		state:       storeState{comments: map[int][]Comment{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithGroup("postcache")
	if s.slot == nil {
		s.slot = newMemoryStore()
	}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) restore(ctx context.Context) error {
	start := time.Now()
	body, ok, err := s.slot.Load(ctx, s.snapshotKey)
	if err != nil {
		s.observe(ctx, "snapshot_restore", false, err, start)
		return fmt.Errorf("restore snapshot from %s: %w", s.slot.Driver(), err)
	}
	if !ok {
		s.observe(ctx, "snapshot_restore", false, nil, start)
		return nil
	}
	payload, err := decodeSnapshot(body)
	if err != nil {
		s.log.Warn("ignoring unreadable snapshot", "driver", s.slot.Driver(), "key", s.snapshotKey, "error", err)
		s.observe(ctx, "snapshot_restore", false, err, start)
		return nil
	}

	s.mu.Lock()
	s.state.posts = payload.Posts
	s.state.users = payload.Users
	s.state.comments = payload.Comments
	s.state.postsFetch.LastFetch = timeFromUnixMilli(payload.LastFetch.Posts)
	s.state.usersFetch.LastFetch = timeFromUnixMilli(payload.LastFetch.Users)
	s.mu.Unlock()

	s.log.Debug("snapshot restored",
		"driver", s.slot.Driver(),
		"posts", len(payload.Posts),
		"users", len(payload.Users),
		"comments", len(payload.Comments),
	)
	s.observe(ctx, "snapshot_restore", true, nil, start)
	return nil
}

// FetchPosts returns the posts collection, reading it from the remote API
// unless force is false and the last successful read is still fresh.
func (s *Store) FetchPosts(ctx context.Context, force bool) ([]Post, error) {
	return fetchCollection(ctx, s, "fetch_posts", CollectionPosts, force,
		s.api.ListPosts,
		func(st *storeState) []Post { return st.posts },
		func(st *storeState, v []Post) { st.posts = v },
	)
}

// FetchUsers is FetchPosts for the users collection, with its own freshness,
// error and loading bookkeeping.
func (s *Store) FetchUsers(ctx context.Context, force bool) ([]User, error) {
	return fetchCollection(ctx, s, "fetch_users", CollectionUsers, force,
		s.api.ListUsers,
		func(st *storeState) []User { return st.users },
		func(st *storeState, v []User) { st.users = v },
	)
}

func fetchCollection[T any](
	ctx context.Context,
	s *Store,
	op string,
	kind Collection,
	force bool,
	load func(context.Context) ([]T, error),
	get func(*storeState) []T,
	set func(*storeState, []T),
) ([]T, error) {
	start := time.Now()
	now := s.clock.Now()

	s.mu.Lock()
	if !force && s.isFresh(s.state.fetchState(kind).LastFetch, now) {
		cached := slices.Clone(get(&s.state))
		s.mu.Unlock()
		s.observe(ctx, op, true, nil, start)
		return cached, nil
	}
	s.mu.Unlock()

	s.update(ctx, func(st *storeState) {
		fs := st.fetchState(kind)
		fs.Loading = true
		fs.Err = ""
	})

	items, err := load(ctx)
	if err != nil {
		s.update(ctx, func(st *storeState) {
			fs := st.fetchState(kind)
			fs.Loading = false
			fs.Err = err.Error()
		})
		s.observe(ctx, op, false, err, start)
		return nil, err
	}

	stored := slices.Clone(items)
	s.update(ctx, func(st *storeState) {
		set(st, stored)
		fs := st.fetchState(kind)
		fs.Loading = false
		fs.LastFetch = now
	})
	s.observe(ctx, op, false, nil, start)
	return slices.Clone(items), nil
}

func (s *Store) isFresh(lastFetch, now time.Time) bool {
	return !lastFetch.IsZero() && now.Sub(lastFetch) < s.freshness
}

// FetchComments returns the comments of postID. Once a post has an entry,
// even an empty one, it is served from memory until ClearCache.
func (s *Store) FetchComments(ctx context.Context, postID int) ([]Comment, error) {
	start := time.Now()

	s.mu.Lock()
	if cached, ok := s.state.comments[postID]; ok {
		out := slices.Clone(cached)
		s.mu.Unlock()
		s.observe(ctx, "fetch_comments", true, nil, start)
		return out, nil
	}
	s.mu.Unlock()

	s.update(ctx, func(st *storeState) {
		st.commentsFetch.Loading = true
		st.commentsFetch.Err = ""
	})

	comments, err := s.api.ListComments(ctx, postID)
	if err != nil {
		s.update(ctx, func(st *storeState) {
			st.commentsFetch.Loading = false
			st.commentsFetch.Err = err.Error()
		})
		s.observe(ctx, "fetch_comments", false, err, start)
		return nil, err
	}

	stored := slices.Clone(comments)
	if stored == nil {
		stored = []Comment{}
	}
	s.update(ctx, func(st *storeState) {
		next := maps.Clone(st.comments)
		if next == nil {
			next = map[int][]Comment{}
		}
		next[postID] = stored
		st.comments = next
		st.commentsFetch.Loading = false
	})
	s.observe(ctx, "fetch_comments", false, nil, start)
	return slices.Clone(stored), nil
}

// CreatePost prepends a pending post, then asks the remote API to store it.
// On success the pending entry is replaced by the stored record; on failure
// it is removed and the error returned.
//
// The pending entry carries a negative temporary id and Optimistic=true. Its
// owner is in.UserID, else the selected user, else 1.
func (s *Store) CreatePost(ctx context.Context, in PostInput) (Post, error) {
	start := time.Now()

	var pending Post
	s.update(ctx, func(st *storeState) {
		st.lastTempID--
		userID := in.UserID
		if userID == 0 {
			userID = st.selected
		}
		if userID == 0 {
			userID = 1
		}
		pending = Post{
			ID:         st.lastTempID,
			UserID:     userID,
			Title:      in.Title,
			Body:       in.Body,
			Optimistic: true,
		}
		next := make([]Post, 0, len(st.posts)+1)
		next = append(next, pending)
		st.posts = append(next, st.posts...)
	})

	created, err := s.api.CreatePost(ctx, PostInput{Title: in.Title, Body: in.Body, UserID: pending.UserID})
	if err != nil {
		s.update(ctx, func(st *storeState) {
			st.posts = slices.DeleteFunc(slices.Clone(st.posts), func(p Post) bool { return p.ID == pending.ID })
			st.postsFetch.Err = err.Error()
		})
		s.observe(ctx, "create_post", false, err, start)
		return Post{}, err
	}
	created.Optimistic = false

	s.update(ctx, func(st *storeState) {
		if !slices.ContainsFunc(st.posts, func(p Post) bool { return p.ID == pending.ID }) {
			// A forced fetch replaced the collection while the write was in flight.
			return
		}
		next := make([]Post, 0, len(st.posts))
		for _, p := range st.posts {
			switch p.ID {
			case pending.ID:
				next = append(next, created)
			case created.ID:
				// Confirmed ids stay unique; the newer record wins.
			default:
				next = append(next, p)
			}
		}
		st.posts = next
	})
	s.observe(ctx, "create_post", true, nil, start)
	return created, nil
}

// DeletePost removes postID locally, then remotely. If the remote delete
// fails, the whole collection as it was before the call is put back.
func (s *Store) DeletePost(ctx context.Context, postID int) error {
	start := time.Now()

	var original []Post
	s.update(ctx, func(st *storeState) {
		original = st.posts
		st.posts = slices.DeleteFunc(slices.Clone(st.posts), func(p Post) bool { return p.ID == postID })
	})

	if err := s.api.DeletePost(ctx, postID); err != nil {
		s.update(ctx, func(st *storeState) {
			st.posts = original
			st.postsFetch.Err = err.Error()
		})
		s.observe(ctx, "delete_post", false, err, start)
		return err
	}
	s.observe(ctx, "delete_post", true, nil, start)
	return nil
}

// SetSelectedUserID sets the user filter applied by FilteredPosts; 0 clears
// it. When users are loaded, an id that is not among them is rejected.
func (s *Store) SetSelectedUserID(id int) error {
	s.mu.Lock()
	known := id == 0 || len(s.state.users) == 0 ||
		slices.ContainsFunc(s.state.users, func(u User) bool { return u.ID == id })
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("select user %d: unknown user: %w", id, ErrInvalidArgument)
	}
	s.update(context.Background(), func(st *storeState) {
		st.selected = id
	})
	return nil
}

// SelectedUserID returns the current filter, 0 when none.
func (s *Store) SelectedUserID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.selected
}

// FilteredPosts returns every post, or only the selected user's posts when a
// filter is set.
func (s *Store) FilteredPosts() []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.selected == 0 {
		return slices.Clone(s.state.posts)
	}
	out := make([]Post, 0)
	for _, p := range s.state.posts {
		if p.UserID == s.state.selected {
			out = append(out, p)
		}
	}
	return out
}

// UserByID looks a user up in the cached collection.
func (s *Store) UserByID(id int) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.state.users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return User{}, false
	}
	return s.state.users[i], true
}

// PostByID looks a post up in the cached collection.
func (s *Store) PostByID(id int) (Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.state.posts, func(p Post) bool { return p.ID == id })
	if i < 0 {
		return Post{}, false
	}
	return s.state.posts[i], true
}

// PostsStats summarizes the cached collections. The most active user is the
// first user holding the strictly greatest post count.
func (s *Store) PostsStats() Stats {
	s.mu.Lock()
	posts := s.state.posts
	users := s.state.users
	s.mu.Unlock()

	stats := Stats{
		TotalPosts:          len(posts),
		TotalUsers:          len(users),
		AveragePostsPerUser: "0",
	}
	if len(users) == 0 {
		return stats
	}

	stats.AveragePostsPerUser = formatAverage(float64(len(posts)) / float64(len(users)))

	counts := make(map[int]int, len(users))
	for _, p := range posts {
		counts[p.UserID]++
	}
	best := users[0]
	for _, u := range users {
		if counts[u.ID] > counts[best.ID] {
			best = u
		}
	}
	stats.MostActiveUser = &best
	return stats
}

// formatAverage renders avg with one decimal, rounding the exact binary value
// half up. FormatFloat alone rounds exact ties (k.25, k.75) to even.
func formatAverage(avg float64) string {
	if q := avg * 4; q == math.Trunc(q) && math.Mod(q, 2) == 1 {
		return strconv.FormatFloat(avg+0.05, 'f', 1, 64)
	}
	return strconv.FormatFloat(avg, 'f', 1, 64)
}

// RetryFetch forces a re-read of the posts or users collection. Any other
// kind fails with ErrInvalidArgument.
func (s *Store) RetryFetch(ctx context.Context, kind Collection) error {
	start := time.Now()
	var err error
	switch kind {
	case CollectionPosts:
		_, err = s.FetchPosts(ctx, true)
	case CollectionUsers:
		_, err = s.FetchUsers(ctx, true)
	default:
		err = fmt.Errorf("retry %q: %w", kind, ErrInvalidArgument)
	}
	s.observe(ctx, "retry_fetch", err == nil, err, start)
	return err
}

// ClearErrors empties every error slot.
func (s *Store) ClearErrors() {
	s.update(context.Background(), func(st *storeState) {
		st.postsFetch.Err = ""
		st.usersFetch.Err = ""
		st.commentsFetch.Err = ""
	})
}

// ClearCache drops posts, users, comments and fetch timestamps. The selected
// user filter is kept.
func (s *Store) ClearCache() {
	s.update(context.Background(), func(st *storeState) {
		st.posts = nil
		st.users = nil
		st.comments = map[int][]Comment{}
		st.postsFetch.LastFetch = time.Time{}
		st.usersFetch.LastFetch = time.Time{}
	})
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.export()
}

func (st *storeState) export() State {
	comments := make(map[int][]Comment, len(st.comments))
	for id, c := range st.comments {
		comments[id] = slices.Clone(c)
	}
	return State{
		Posts:          slices.Clone(st.posts),
		Users:          slices.Clone(st.users),
		Comments:       comments,
		SelectedUserID: st.selected,
		PostsFetch:     st.postsFetch,
		UsersFetch:     st.usersFetch,
		CommentsFetch:  st.commentsFetch,
	}
}

// update applies fn as one atomic state transition, then notifies listeners
// and persists the snapshot outside the lock. fn must replace slices and maps
// rather than edit them; DeletePost relies on that for rollback.
func (s *Store) update(ctx context.Context, fn func(*storeState)) {
	s.mu.Lock()
	fn(&s.state)
	s.version++
	version := s.version
	snap := s.state.export()
	s.pending = append(s.pending, snap)
	deliver := !s.notifying
	s.notifying = true
	s.mu.Unlock()

	if deliver {
		s.dispatch()
	}
	s.persist(context.WithoutCancel(ctx), version, snap)
}

// persist writes snap unless a newer version has already been written.
// Failures are logged; they never fail the operation that changed state.
func (s *Store) persist(ctx context.Context, version uint64, snap State) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if version <= s.persisted {
		return
	}

	start := time.Now()
	body, err := encodeSnapshot(snap)
	if err == nil {
		err = s.slot.Save(ctx, s.snapshotKey, body)
	}
	s.observe(ctx, "snapshot_save", err == nil, err, start)
	if err != nil {
		s.log.Warn("snapshot save failed", "driver", s.slot.Driver(), "key", s.snapshotKey, "error", err)
		return
	}
	s.persisted = version
}

func (s *Store) observe(ctx context.Context, op string, hit bool, err error, start time.Time) {
	if s.observer == nil {
		return
	}
	s.observer.OnStoreOp(ctx, op, hit, err, time.Since(start))
}
