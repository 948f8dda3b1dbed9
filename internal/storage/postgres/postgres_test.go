package postgres

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"
)

// connect returns a client for SENTIENT_TEST_PG_DSN or skips the test.
func connect(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("SENTIENT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SENTIENT_TEST_PG_DSN not set")
	}
	c, err := New(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{0: 200, -1: 200, 50: 50, 10000: 10000, 20000: 10000}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestSceneRoundTrip(t *testing.T) {
	c := connect(t)
	ctx := context.Background()

	id := "test-" + time.Now().Format("150405.000000")
	if err := c.SaveScene(ctx, id, "Test", []byte(`{"version":1,"id":"`+id+`"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.SetActiveScene(ctx, id); err != nil {
		t.Fatalf("set active: %v", err)
	}
	active, err := c.ActiveScene(ctx)
	if err != nil || active != id {
		t.Fatalf("expected active %s, got %q (%v)", id, active, err)
	}
	data, ok, err := c.LoadScene(ctx, id)
	if err != nil || !ok || len(data) == 0 {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := c.LoadScene(ctx, id+"-missing"); ok {
		t.Error("expected missing scene")
	}
}

func TestAppendAndRecentEvents(t *testing.T) {
	c := connect(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := c.Append(now, "info", "scene.loaded", "", map[string]interface{}{"scene_id": "s"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.Append(now.Add(time.Millisecond), "warn", "tick.overrun", "late", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := c.RecentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(got) != 2 || got[0].Name != "scene.loaded" || got[1].Name != "tick.overrun" {
		t.Fatalf("unexpected events %+v", got)
	}
	if got[0].Fields["scene_id"] != "s" || got[1].Message != "late" {
		t.Errorf("unexpected event contents %+v", got)
	}

	ids, err := c.SceneIDs(ctx)
	if err != nil {
		t.Fatalf("scene ids: %v", err)
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("expected sorted ids, got %v", ids)
	}
}
