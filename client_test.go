package postcache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", srv.Client(), WithRequestIDFunc(func() string { return "req-1" }))
}

func TestHTTPClientListPosts(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/posts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") != "req-1" {
			t.Errorf("missing request id header")
		}
		_, _ = w.Write([]byte(`[{"id":1,"userId":2,"title":"t","body":"b"}]`))
	})
	posts, err := api.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 || posts[0].UserID != 2 || posts[0].Title != "t" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
}

func TestHTTPClientListUsersDecodesProfile(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"Leanne Graham","username":"Bret","email":"Sincere@april.biz",
			"address":{"street":"Kulas Light","suite":"Apt. 556","city":"Gwenborough","zipcode":"92998-3874","geo":{"lat":"-37.3159","lng":"81.1496"}},
			"phone":"1-770-736-8031 x56442","website":"hildegard.org",
			"company":{"name":"Romaguera-Crona","catchPhrase":"Multi-layered client-server neural-net","bs":"harness real-time e-markets"}}]`))
	})
	users, err := api.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	u := users[0]
	if u.Address.Geo.Lat != "-37.3159" || u.Company.BS != "harness real-time e-markets" || u.Website != "hildegard.org" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestHTTPClientListComments(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts/7/comments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":1,"postId":7,"name":"n","email":"e","body":"b"}]`))
	})
	comments, err := api.ListComments(context.Background(), 7)
	if err != nil || len(comments) != 1 || comments[0].PostID != 7 {
		t.Fatalf("unexpected comments: %+v err=%v", comments, err)
	}
}

func TestHTTPClientCreatePost(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/posts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		var in PostInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Post{ID: 101, UserID: in.UserID, Title: in.Title, Body: in.Body, Optimistic: true})
	})
	post, err := api.CreatePost(context.Background(), PostInput{Title: "t", Body: "b", UserID: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if post.ID != 101 || post.UserID != 3 || post.Optimistic {
		t.Fatalf("unexpected post: %+v", post)
	}
}

func TestHTTPClientDeletePost(t *testing.T) {
	var called bool
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		called = r.Method == http.MethodDelete && r.URL.Path == "/posts/5"
		_, _ = w.Write([]byte(`{}`))
	})
	if err := api.DeletePost(context.Background(), 5); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !called {
		t.Fatalf("expected DELETE /posts/5")
	}
}

func TestHTTPClientStatusError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	_, err := api.ListPosts(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 NetworkError, got %v", err)
	}
	if err.Error() != "list posts: request failed with status code 404" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestHTTPClientDecodeError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	if _, err := api.ListUsers(context.Background()); !IsNetworkError(err) {
		t.Fatalf("expected NetworkError for bad body, got %v", err)
	}
}

func TestHTTPClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	api := NewHTTPClient(url, nil)
	_, err := api.ListPosts(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.StatusCode != 0 || ne.Err == nil {
		t.Fatalf("expected transport NetworkError, got %v", err)
	}
}

func TestHTTPClientContextCanceled(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := api.ListPosts(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewHTTPClientDefaults(t *testing.T) {
	c := NewHTTPClient("", nil)
	if c.baseURL != DefaultBaseURL || c.client != http.DefaultClient {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if id := c.newID(); len(id) != 36 {
		t.Fatalf("expected uuid request id, got %q", id)
	}
}
