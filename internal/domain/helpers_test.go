package domain_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rafaelmorch/platform-sports/internal/domain"
)

var baseTime = time.Date(2030, time.January, 1, 12, 0, 0, 0, time.UTC)

// stepClock advances one second on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock { return &stepClock{t: baseTime} }

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func validContent() domain.ActivityContent {
	return domain.ActivityContent{
		Title:       "Sunday beach volley",
		Sport:       "volleyball",
		Description: "Friendly match, all levels welcome",
		AddressText: "Av. Atlantica 1702",
		City:        "Rio de Janeiro",
		State:       "RJ",
		Capacity:    intPtr(10),
		Published:   boolPtr(true),
		Public:      boolPtr(true),
	}
}

// countingDirectory records how many lookups were made.
type countingDirectory struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	calls    [][]string
	err      error
}

func (d *countingDirectory) Lookup(_ context.Context, ids []string) (map[string]domain.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, append([]string(nil), ids...))
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]domain.Profile, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// fakeImages keeps blobs in a map.
type fakeImages struct {
	mu        sync.Mutex
	next      int
	blobs     map[string][]byte
	deleted   []string
	deleteErr error
}

func newFakeImages() *fakeImages { return &fakeImages{blobs: make(map[string][]byte)} }

func (f *fakeImages) Put(_ context.Context, ownerID, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ref := ownerID + "/image-" + string(rune('0'+f.next))
	f.blobs[ref] = data
	return ref, nil
}

func (f *fakeImages) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.blobs, ref)
	return nil
}
