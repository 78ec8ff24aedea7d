// Package blob talks to the external media store. The store speaks a
// Cloudinary-compatible HTTP API: uploads are signed with a SHA-1 digest of
// the sorted request parameters and the account secret.
package blob

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string

	// BaseURL is overridable for tests.
	BaseURL string
	HTTP    *http.Client
}

func NewClient(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		BaseURL:   defaultBaseURL,
		HTTP:      &http.Client{Timeout: 60 * time.Second},
	}
}

// Credential is everything a client needs to upload directly to the media
// store. The secret itself never leaves the server.
type Credential struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"apiKey"`
	CloudName string `json:"cloudName"`
	Folder    string `json:"folder"`
}

// Sign computes the request signature: SHA-1 over the sorted "key=value"
// pairs joined with "&", with the API secret appended.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

// SignUpload issues a credential for a direct client upload into the
// configured folder.
func (c *Client) SignUpload(now time.Time) Credential {
	ts := now.Unix()
	params := map[string]string{
		"timestamp": fmt.Sprintf("%d", ts),
		"folder":    c.Folder,
	}
	return Credential{
		Signature: Sign(params, c.APISecret),
		Timestamp: ts,
		APIKey:    c.APIKey,
		CloudName: c.CloudName,
		Folder:    c.Folder,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends a whole file in a single signed multipart request and returns
// the stored file's URL. Files above the small-file threshold go through
// upload.Chunked instead.
func (c *Client) Upload(ctx context.Context, filename string, data io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	cred := c.SignUpload(time.Now())
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
	if _, err := io.Copy(part, data); err != nil {
		return "", errors.Wrap(err, "copying file body")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "finalizing multipart body")
	}

	url := fmt.Sprintf("%s/%s/auto/upload", c.BaseURL, c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", errors.Wrap(err, "building upload request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "posting upload")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading upload response")
	}
	if resp.StatusCode != http.StatusOK {
		// The store reports errors as JSON; anything in between (a proxy's
		// HTML error page) must still surface the status code.
		var parsed uploadResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Message != "" {
			return "", errors.Errorf("upload failed: %s", parsed.Error.Message)
		}
		return "", errors.Errorf("upload failed: status %d: %s", resp.StatusCode, raw)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Wrap(err, "decoding upload response")
	}
	if parsed.SecureURL == "" {
		return "", errors.New("upload response missing secure_url")
	}
	return parsed.SecureURL, nil
}
