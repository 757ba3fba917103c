package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// MaxMediaBytes caps uploads client-side so oversized files fail fast
// instead of streaming to the server only to be rejected.
const MaxMediaBytes = 10 << 20

// UploadMedia uploads a local file and returns the server-assigned media
// file, whose id can be attached to a send.
func (c *Client) UploadMedia(ctx context.Context, path string) (*MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat media file: %w", err)
	}
	if info.Size() > MaxMediaBytes {
		return nil, fmt.Errorf("media file %s is %d bytes, limit is %d", filepath.Base(path), info.Size(), MaxMediaBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read media file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("/api/media").String(), &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	token := c.tokens.Token()
	if token == "" {
		return nil, ErrUnauthorized
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var file MediaFile
	if err := decodeJSON(resp.Body, &file); err != nil {
		return nil, err
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upload response: %w", err)
	}
	return &file, nil
}
