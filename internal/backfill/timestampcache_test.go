package backfill

import "testing"

func TestTimestampCache_GetMiss(t *testing.T) {
	c := newTimestampCache(2)
	if _, ok := c.get(1); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestTimestampCache_PutGet(t *testing.T) {
	c := newTimestampCache(2)
	c.put(1, 1000)
	ts, ok := c.get(1)
	if !ok || ts != 1000 {
		t.Fatalf("got (%d, %v), want (1000, true)", ts, ok)
	}
}

func TestTimestampCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newTimestampCache(2)
	c.put(1, 100)
	c.put(2, 200)
	c.get(1) // touch 1, making 2 the least recently used
	c.put(3, 300)

	if _, ok := c.get(2); ok {
		t.Fatal("expected block 2 to be evicted")
	}
	if ts, ok := c.get(1); !ok || ts != 100 {
		t.Fatal("expected block 1 to survive eviction")
	}
	if ts, ok := c.get(3); !ok || ts != 300 {
		t.Fatal("expected block 3 to be present")
	}
}

func TestIsTooManyResults(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"query returned more than 10000 results", true},
		{"error -32005: limit exceeded", true},
		{"too many results requested", true},
		{"connection refused", false},
	}
	for _, tc := range cases {
		err := &testError{tc.msg}
		if got := isTooManyResults(err); got != tc.want {
			t.Errorf("isTooManyResults(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
