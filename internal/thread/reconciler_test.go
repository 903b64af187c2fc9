package thread

import (
	"fmt"
	"testing"
)

func comments(n int) []Comment {
	out := make([]Comment, n)
	for i := range out {
		out[i] = Comment{ID: fmt.Sprintf("c%d", i), PostID: "P", Body: fmt.Sprintf("body %d", i)}
	}
	return out
}

func TestEmptyListShowsPlaceholder(t *testing.T) {
	r := New()
	r.Begin("P", 1)
	if !r.Loaded("P", 1, nil) {
		t.Fatalf("load should apply")
	}
	ph, ok := r.Placeholder()
	if !ok || ph.Title != "No comments yet" {
		t.Fatalf("expected empty placeholder, got %+v (%v)", ph, ok)
	}
	if len(r.Items()) != 0 {
		t.Fatalf("expected no items")
	}
}

func TestListRendersInServerOrder(t *testing.T) {
	r := New()
	r.Begin("P", 1)
	r.Loaded("P", 1, comments(3))
	items := r.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, c := range items {
		if c.ID != fmt.Sprintf("c%d", i) {
			t.Fatalf("item %d out of order: %s", i, c.ID)
		}
	}
	if _, ok := r.Placeholder(); ok {
		t.Fatalf("no placeholder expected for a non-empty list")
	}
}

func TestInsertReplacesPlaceholder(t *testing.T) {
	r := New()
	r.Begin("P", 1)
	r.Loaded("P", 1, nil)
	r.Insert("P", 1, Comment{ID: "new", PostID: "P"})
	items := r.Items()
	if len(items) != 1 || items[0].ID != "new" {
		t.Fatalf("expected exactly the new comment, got %+v", items)
	}
	if _, ok := r.Placeholder(); ok {
		t.Fatalf("placeholder must be gone after insert")
	}
}

func TestInsertGoesOnTop(t *testing.T) {
	r := New()
	r.Begin("P", 1)
	r.Loaded("P", 1, comments(2))
	r.Insert("P", 1, Comment{ID: "new", PostID: "P"})
	items := r.Items()
	if len(items) != 3 || items[0].ID != "new" || items[1].ID != "c0" {
		t.Fatalf("expected new comment first, got %+v", items)
	}
}

func TestStaleResultsAreIgnored(t *testing.T) {
	r := New()
	r.Begin("P", 1)
	r.Begin("Q", 2)
	if r.Loaded("P", 1, comments(2)) {
		t.Fatalf("result for an old generation must be discarded")
	}
	if r.Status() != StatusLoading {
		t.Fatalf("thread for Q should still be loading")
	}
	r.Clear()
	if r.Insert("Q", 2, Comment{ID: "late"}) {
		t.Fatalf("insert after clear must be discarded")
	}
}

func TestFailurePlaceholders(t *testing.T) {
	r := New()
	r.Begin("P", 1)
	r.Failed("P", 1, true)
	if ph, _ := r.Placeholder(); ph.Title != "Connection Error" {
		t.Fatalf("expected connection placeholder, got %+v", ph)
	}
	r.Begin("P", 2)
	r.Failed("P", 2, false)
	if ph, _ := r.Placeholder(); ph.Title != "Failed to load comments" {
		t.Fatalf("expected failure placeholder, got %+v", ph)
	}
}

func TestInsertDuringLoadSurvivesList(t *testing.T) {
	r := New()
	r.Begin("P", 1)
	r.Insert("P", 1, Comment{ID: "mine", PostID: "P"})
	r.Loaded("P", 1, comments(1))
	items := r.Items()
	if len(items) != 2 || items[0].ID != "mine" || items[1].ID != "c0" {
		t.Fatalf("expected own comment above the loaded list, got %+v", items)
	}
}

func TestInsertDuringLoadIsNotDuplicated(t *testing.T) {
	r := New()
	r.Begin("P", 1)
	r.Insert("P", 1, Comment{ID: "c0", PostID: "P"})
	r.Loaded("P", 1, comments(2))
	if items := r.Items(); len(items) != 2 || items[0].ID != "c0" {
		t.Fatalf("comment already in the list must appear once, got %+v", items)
	}
}

func TestInsertDuringLoadSurvivesFailure(t *testing.T) {
	r := New()
	r.Begin("P", 1)
	r.Insert("P", 1, Comment{ID: "mine", PostID: "P"})
	r.Failed("P", 1, false)
	if items := r.Items(); len(items) != 1 || items[0].ID != "mine" {
		t.Fatalf("own comment should stay visible, got %+v", items)
	}
	if _, ok := r.Placeholder(); ok {
		t.Fatalf("no placeholder expected while a comment is shown")
	}
}
