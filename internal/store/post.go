package store

import (
	"fmt"
	"time"
)

// ReplaceFeed swaps the cached front page for a freshly fetched one in a
// single transaction, so readers never observe a half-written feed.
func (db *DB) ReplaceFeed(posts []Post) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM posts`); err != nil {
		return fmt.Errorf("clear feed: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, p := range posts {
		if _, err := tx.Exec(`
			INSERT INTO posts (id, hub, title, author, source, score, comment_count, posted_at, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Hub, p.Title, p.Author, p.Source, p.Score, p.CommentCount, p.PostedAt, now); err != nil {
			return fmt.Errorf("insert post %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// ListFeed returns the cached front page, newest first.
func (db *DB) ListFeed(limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, hub, title, author, source, score, comment_count, posted_at
		FROM posts
		ORDER BY posted_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Hub, &p.Title, &p.Author, &p.Source, &p.Score, &p.CommentCount, &p.PostedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
