// Package reddit decodes Reddit's listing envelope as returned by the
// server's mirror proxy. The data is consumed read-only and never written
// back, so the decoder is tolerant of extra fields but strict on the
// structure it actually uses.
package reddit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Listing is Reddit's generic container: kind "Listing" wrapping children.
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

type ListingData struct {
	Children []Child `json:"children"`
}

// Child wraps a single item; Kind is "t1" for comments, "t3" for posts.
type Child struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Post is a mirrored submission.
type Post struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	SelfText    string  `json:"selftext"`
	URL         string  `json:"url"`
	Score       int64   `json:"score"`
	NumComments int64   `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// Comment is one node of a thread's comment tree.
type Comment struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Score      int64   `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Replies    Replies `json:"replies"`
}

// Replies holds a comment's nested listing. Reddit sends the empty string
// instead of null when a comment has no replies, so this needs a custom
// unmarshal.
type Replies struct {
	Listing *Listing
}

func (r *Replies) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == `""` || string(b) == "null" {
		r.Listing = nil
		return nil
	}
	var l Listing
	if err := json.Unmarshal(b, &l); err != nil {
		return fmt.Errorf("decode replies listing: %w", err)
	}
	r.Listing = &l
	return nil
}

// Thread is a decoded post with its top-level comments.
type Thread struct {
	Post     Post
	Comments []Comment
}

// DecodeThread decodes the two-element [postListing, commentsListing] array
// that Reddit's comments endpoint returns. A malformed pair yields an error,
// never a partial thread.
func DecodeThread(raw []byte) (*Thread, error) {
	var pair []Listing
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, fmt.Errorf("decode listing pair: %w", err)
	}
	if len(pair) != 2 {
		return nil, fmt.Errorf("expected 2 listings, got %d", len(pair))
	}
	for i := range pair {
		if pair[i].Kind != "Listing" {
			return nil, fmt.Errorf("element %d has kind %q, want Listing", i, pair[i].Kind)
		}
	}
	if len(pair[0].Data.Children) == 0 {
		return nil, errors.New("post listing has no children")
	}

	postChild := pair[0].Data.Children[0]
	if postChild.Kind != "t3" {
		return nil, fmt.Errorf("post child has kind %q, want t3", postChild.Kind)
	}
	var post Post
	if err := json.Unmarshal(postChild.Data, &post); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	if post.ID == "" || post.Title == "" {
		return nil, errors.New("post missing id or title")
	}

	comments, err := decodeComments(&pair[1])
	if err != nil {
		return nil, err
	}
	return &Thread{Post: post, Comments: comments}, nil
}

func decodeComments(l *Listing) ([]Comment, error) {
	var comments []Comment
	for _, child := range l.Data.Children {
		// "more" stubs carry pagination hints, not comments; skip them.
		if child.Kind != "t1" {
			continue
		}
		var c Comment
		if err := json.Unmarshal(child.Data, &c); err != nil {
			return nil, fmt.Errorf("decode comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// Descendants flattens a comment's reply tree depth-first.
func (c *Comment) Descendants() []Comment {
	if c.Replies.Listing == nil {
		return nil
	}
	var out []Comment
	for _, child := range c.Replies.Listing.Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var reply Comment
		if err := json.Unmarshal(child.Data, &reply); err != nil {
			continue
		}
		out = append(out, reply)
		out = append(out, reply.Descendants()...)
	}
	return out
}
