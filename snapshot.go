package postcache

import (
	"encoding/json"
	"fmt"
	"time"
)

const snapshotVersion = 1

// snapshotPayload is the persisted projection of the store. Timestamps are
// Unix milliseconds and null until the first successful fetch.
type snapshotPayload struct {
	Version   int               `json:"version"`
	Posts     []Post            `json:"posts"`
	Users     []User            `json:"users"`
	Comments  map[int][]Comment `json:"comments"`
	LastFetch snapshotLastFetch `json:"lastFetch"`
}

type snapshotLastFetch struct {
	Posts *int64 `json:"posts"`
	Users *int64 `json:"users"`
}

func encodeSnapshot(st State) ([]byte, error) {
	payload := snapshotPayload{
		Version:  snapshotVersion,
		Posts:    st.Posts,
		Users:    st.Users,
		Comments: st.Comments,
		LastFetch: snapshotLastFetch{
			Posts: unixMilliOrNil(st.PostsFetch.LastFetch),
			Users: unixMilliOrNil(st.UsersFetch.LastFetch),
		},
	}
	if payload.Posts == nil {
		payload.Posts = []Post{}
	}
	if payload.Users == nil {
		payload.Users = []User{}
	}
	if payload.Comments == nil {
		payload.Comments = map[int][]Comment{}
	}
	return json.Marshal(payload)
}

// decodeSnapshot parses a persisted payload. Posts still marked optimistic
// are dropped: the request that would have confirmed them is gone.
func decodeSnapshot(body []byte) (snapshotPayload, error) {
	var payload snapshotPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return snapshotPayload{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if payload.Version != snapshotVersion {
		return snapshotPayload{}, fmt.Errorf("decode snapshot: unsupported version %d", payload.Version)
	}
	posts := make([]Post, 0, len(payload.Posts))
	for _, p := range payload.Posts {
		if p.Optimistic {
			continue
		}
		posts = append(posts, p)
	}
	payload.Posts = posts
	if payload.Comments == nil {
		payload.Comments = map[int][]Comment{}
	}
	return payload, nil
}

func unixMilliOrNil(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func timeFromUnixMilli(ms *int64) time.Time {
	if ms == nil {
		return time.Time{}
	}
	return time.UnixMilli(*ms)
}
