// Package relay is the boundary client for the cloud relay path: files
// uploaded to object storage behind a short code, as an alternative to
// a live P2P session. The object store itself stays external; this
// client only talks to its HTTP API.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCodeNotFound means the code has no file behind it, or it expired.
var ErrCodeNotFound = errors.New("invalid or expired code")

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// SignedUpload is a pre-authorized upload slot in the object store.
type SignedUpload struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// FileRecord describes a relayed file retrievable by code.
type FileRecord struct {
	Code        string `json:"code"`
	FileName    string `json:"fileName"`
	FileSize    uint64 `json:"fileSize"`
	MimeType    string `json:"mimeType"`
	DownloadURL string `json:"downloadUrl"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// SignUpload requests a signed upload slot for a file.
func (c *Client) SignUpload(ctx context.Context, fileName string, fileSize uint64, mimeType string) (SignedUpload, error) {
	var out SignedUpload
	err := c.postJSON(ctx, "/api/files/sign-upload", map[string]interface{}{
		"fileName": fileName,
		"fileSize": fileSize,
		"mimeType": mimeType,
	}, &out)
	return out, err
}

// SaveMetadata records an uploaded object and returns its short code.
func (c *Client) SaveMetadata(ctx context.Context, objectKey, fileName string, fileSize uint64, mimeType string) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	err := c.postJSON(ctx, "/api/files/save-metadata", map[string]interface{}{
		"objectKey": objectKey,
		"fileName":  fileName,
		"fileSize":  fileSize,
		"mimeType":  mimeType,
	}, &out)
	return out.Code, err
}

// FetchByCode looks up a relayed file by its short code.
func (c *Client) FetchByCode(ctx context.Context, code string) (FileRecord, error) {
	var out FileRecord

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/files/"+code, nil)
	if err != nil {
		return out, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("relay request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return out, ErrCodeNotFound
	}
	if res.StatusCode != http.StatusOK {
		return out, fmt.Errorf("relay returned status %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode relay response: %w", err)
	}
	return out, nil
}

// DeleteByCode removes a relayed file before its expiry.
func (c *Client) DeleteByCode(ctx context.Context, code string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/files/"+code, nil)
	if err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return ErrCodeNotFound
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("relay returned status %d", res.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return fmt.Errorf("relay returned status %d", res.StatusCode)
	}

	return json.NewDecoder(res.Body).Decode(out)
}
