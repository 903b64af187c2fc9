package feed

import "testing"

func samplePosts() []Post {
	return []Post{
		{ID: "1", Body: "first", Privacy: PrivacyPublic, LikeCount: 2},
		{ID: "2", Body: "second", Privacy: PrivacyPublic, CommentCount: 4},
		{ID: "3", Body: "third", Privacy: PrivacyPrivate},
	}
}

func TestApplyPatches(t *testing.T) {
	s := NewStore(samplePosts())
	if !s.Apply(LikeSettled{PostID: "1", Liked: true, Count: 3}) {
		t.Fatalf("like patch should apply")
	}
	if p, _ := s.Get("1"); !p.Liked || p.LikeCount != 3 {
		t.Fatalf("unexpected post after like: %+v", p)
	}
	s.Apply(Edited{PostID: "3", Body: "hi", Privacy: PrivacyPublic})
	if p, _ := s.Get("3"); p.Body != "hi" || p.Privacy != PrivacyPublic {
		t.Fatalf("unexpected post after edit: %+v", p)
	}
	s.Apply(CommentAdded{PostID: "2"})
	if p, _ := s.Get("2"); p.CommentCount != 5 {
		t.Fatalf("expected 5 comments, got %d", p.CommentCount)
	}
}

func TestDeleteLifecycle(t *testing.T) {
	s := NewStore(samplePosts())
	s.Apply(Disabled{PostID: "2", On: true})
	if p, _ := s.Get("2"); !p.Disabled {
		t.Fatalf("expected disabled card")
	}
	s.Apply(Disabled{PostID: "2", On: false})
	if p, _ := s.Get("2"); p.Disabled {
		t.Fatalf("expected restored card")
	}
	s.Apply(ExitStarted{PostID: "2"})
	s.Apply(Removed{PostID: "2"})
	if _, ok := s.Get("2"); ok {
		t.Fatalf("expected post 2 to be gone")
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 posts left, got %d", s.Len())
	}
	if p, ok := s.Get("3"); !ok || p.Body != "third" {
		t.Fatalf("index not rebuilt after removal: %+v", p)
	}
}

func TestPatchForMissingPostIsDropped(t *testing.T) {
	s := NewStore(samplePosts())
	if s.Apply(LikeSettled{PostID: "missing", Liked: true, Count: 1}) {
		t.Fatalf("patch for a missing post must report false")
	}
	if s.Apply(nil) {
		t.Fatalf("nil patch must report false")
	}
}

func TestReplaceSkipsDuplicates(t *testing.T) {
	s := NewStore(nil)
	s.Replace([]Post{{ID: "a"}, {ID: "a"}, {ID: ""}, {ID: "b"}})
	if s.Len() != 2 {
		t.Fatalf("expected duplicates and blank ids dropped, got %d", s.Len())
	}
}

func TestParsePrivacy(t *testing.T) {
	if p, err := ParsePrivacy(" Private "); err != nil || p != PrivacyPrivate {
		t.Fatalf("expected private, got %q (%v)", p, err)
	}
	if _, err := ParsePrivacy("friends"); err == nil {
		t.Fatalf("expected error for unknown privacy")
	}
	if PrivacyPrivate.Icon() != "🔒" || PrivacyPrivate.Label() != "Private" {
		t.Fatalf("unexpected private indicator")
	}
}
