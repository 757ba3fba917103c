package reddit

import "testing"

const threadJSON = `[
  {"kind": "Listing", "data": {"children": [
    {"kind": "t3", "data": {
      "id": "abc123", "subreddit": "golang", "title": "Generics landed",
      "author": "gopher", "selftext": "finally", "score": 1200,
      "num_comments": 2, "created_utc": 1640000000.0
    }}
  ]}},
  {"kind": "Listing", "data": {"children": [
    {"kind": "t1", "data": {
      "id": "c1", "author": "alice", "body": "great news", "score": 40,
      "created_utc": 1640000100.0,
      "replies": {"kind": "Listing", "data": {"children": [
        {"kind": "t1", "data": {
          "id": "c2", "author": "bob", "body": "agreed", "score": 5,
          "created_utc": 1640000200.0, "replies": ""
        }}
      ]}}
    }},
    {"kind": "more", "data": {"count": 10, "children": ["c3", "c4"]}}
  ]}}
]`

func TestDecodeThread(t *testing.T) {
	thread, err := DecodeThread([]byte(threadJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if thread.Post.ID != "abc123" || thread.Post.Title != "Generics landed" {
		t.Fatalf("unexpected post: %+v", thread.Post)
	}
	if thread.Post.Score != 1200 {
		t.Fatalf("score = %d", thread.Post.Score)
	}
	if len(thread.Comments) != 1 {
		t.Fatalf("expected 1 top-level comment (more stub skipped), got %d", len(thread.Comments))
	}
	if thread.Comments[0].Author != "alice" {
		t.Fatalf("unexpected comment: %+v", thread.Comments[0])
	}
}

func TestRepliesEmptyStringQuirk(t *testing.T) {
	thread, err := DecodeThread([]byte(threadJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	nested := thread.Comments[0].Descendants()
	if len(nested) != 1 || nested[0].Author != "bob" {
		t.Fatalf("unexpected descendants: %+v", nested)
	}
	// bob's comment carried replies: "" which must decode to nil.
	if nested[0].Replies.Listing != nil {
		t.Fatal("empty-string replies should decode to nil listing")
	}
}

func TestDecodeThreadMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"single listing", `[{"kind":"Listing","data":{"children":[]}}]`},
		{"wrong kind", `[{"kind":"Thing","data":{"children":[]}},{"kind":"Listing","data":{"children":[]}}]`},
		{"empty post listing", `[{"kind":"Listing","data":{"children":[]}},{"kind":"Listing","data":{"children":[]}}]`},
		{"post is a comment", `[{"kind":"Listing","data":{"children":[{"kind":"t1","data":{"id":"x","body":"y"}}]}},{"kind":"Listing","data":{"children":[]}}]`},
		{"post missing title", `[{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"x"}}]}},{"kind":"Listing","data":{"children":[]}}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeThread([]byte(tc.raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
