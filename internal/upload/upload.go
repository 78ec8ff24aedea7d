// Package upload implements the size-tiered media send. Small files go up in
// one multipart request; large files are cut into fixed-size chunks and sent
// sequentially, each chunk carrying a Content-Range header and a shared
// upload id so the store can reassemble them.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/toikobi401/MessengerClone/internal/blob"
)

const (
	// ChunkSize and SmallFileThreshold are part of the store's upload
	// contract and must not change independently of it.
	ChunkSize          = 6 * 1024 * 1024
	SmallFileThreshold = 10 * 1024 * 1024

	maxRetries = 3
)

// Chunker sends large files to the media store chunk by chunk. Chunks are
// strictly sequential; the store rejects out-of-order ranges.
type Chunker struct {
	Client *blob.Client

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

func NewChunker(c *blob.Client) *Chunker {
	return &Chunker{Client: c, sleep: time.Sleep}
}

type chunkResponse struct {
	SecureURL string `json:"secure_url"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send uploads a file of known total size. Any chunk that still fails after
// its retries aborts the whole send; there is no partial success.
func (c *Chunker) Send(ctx context.Context, uploadID, filename string, data io.Reader, total int64) (string, error) {
	if total <= 0 {
		return "", errors.New("total size must be positive")
	}

	var finalURL string
	var offset int64
	buf := make([]byte, ChunkSize)

	for offset < total {
		n, err := io.ReadFull(data, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			err = nil
		}
		if err != nil {
			return "", errors.Wrap(err, "reading chunk")
		}
		if n == 0 {
			return "", errors.Errorf("source ended at %d of %d bytes", offset, total)
		}
		if offset+int64(n) > total {
			n = int(total - offset)
		}

		end := offset + int64(n) - 1
		url, err := c.sendChunk(ctx, uploadID, filename, buf[:n], offset, end, total)
		if err != nil {
			return "", err
		}
		if url != "" {
			finalURL = url
		}
		offset += int64(n)
	}

	if finalURL == "" {
		return "", errors.New("store never returned a file url")
	}
	return finalURL, nil
}

func (c *Chunker) sendChunk(ctx context.Context, uploadID, filename string, chunk []byte, start, end, total int64) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			c.sleep(time.Second * time.Duration(attempt))
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		url, err := c.postChunk(ctx, uploadID, filename, chunk, start, end, total)
		if err == nil {
			return url, nil
		}
		lastErr = err
	}
	return "", errors.Wrapf(lastErr, "chunk %d-%d failed after %d attempts", start, end, maxRetries)
}

func (c *Chunker) postChunk(ctx context.Context, uploadID, filename string, chunk []byte, start, end, total int64) (string, error) {
	var body bytes.Buffer
	w, err := chunkForm(&body, c.Client, filename, chunk)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/auto/upload", c.Client.BaseURL, c.Client.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", errors.Wrap(err, "building chunk request")
	}
	req.Header.Set("Content-Type", w)
	req.Header.Set("X-Unique-Upload-Id", uploadID)
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))

	resp, err := c.Client.HTTP.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "posting chunk")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading chunk response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("chunk rejected: status %d: %s", resp.StatusCode, raw)
	}

	var parsed chunkResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", errors.Wrap(err, "decoding chunk response")
		}
	}
	return parsed.SecureURL, nil
}

// chunkForm writes a signed multipart body for one chunk and returns its
// content type.
func chunkForm(body *bytes.Buffer, client *blob.Client, filename string, chunk []byte) (string, error) {
	w := multipart.NewWriter(body)

	cred := client.SignUpload(time.Now())
	fields := map[string]string{
		"api_key":   cred.APIKey,
		"timestamp": fmt.Sprintf("%d", cred.Timestamp),
		"signature": cred.Signature,
		"folder":    cred.Folder,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", errors.Wrap(err, "writing form field")
		}
	}

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", errors.Wrap(err, "creating form file")
	}
	if _, err := part.Write(chunk); err != nil {
		return "", errors.Wrap(err, "writing chunk body")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "finalizing multipart body")
	}
	return w.FormDataContentType(), nil
}
