// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/chatsync/lib/secret"
)

// maxContentSize bounds a single content upload. The service rejects
// larger payloads anyway; enforcing the limit client-side avoids
// buffering an unbounded reader.
const maxContentSize = 64 << 20

// UploadContent uploads message content (an image, a file) to the
// content store and returns the server-assigned content ID. The
// payload's BLAKE3 digest is sent in the X-Content-Digest header; the
// server uses it as a deduplication key and to verify the transfer.
//
// The payload is buffered in memory to compute the digest before the
// request is sent. Uploads larger than 64 MiB are rejected.
func (c *Client) UploadContent(ctx context.Context, token *secret.Buffer, contentType string, payload io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(payload, maxContentSize+1))
	if err != nil {
		return "", fmt.Errorf("gateway: reading content payload: %w", err)
	}
	if len(data) > maxContentSize {
		return "", fmt.Errorf("gateway: content exceeds %d byte upload limit", maxContentSize)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("gateway: content payload is empty")
	}

	digest := blake3.Sum256(data)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/content/v1/upload", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gateway: failed to create upload request: %w", err)
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("X-Content-Digest", hex.EncodeToString(digest[:]))
	if token != nil {
		request.Header.Set("Authorization", "Bearer "+token.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("gateway: content upload failed: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("gateway: failed to read upload response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		var serviceErr ServiceError
		if jsonErr := json.Unmarshal(responseBody, &serviceErr); jsonErr != nil || serviceErr.Code == "" {
			return "", fmt.Errorf("gateway: unexpected %d response from upload: %s",
				response.StatusCode, string(responseBody))
		}
		serviceErr.StatusCode = response.StatusCode
		return "", fmt.Errorf("gateway: content upload failed: %w", &serviceErr)
	}

	var uploadResponse struct {
		ContentID string `json:"content_id"`
	}
	if err := json.Unmarshal(responseBody, &uploadResponse); err != nil {
		return "", fmt.Errorf("gateway: failed to parse upload response: %w", err)
	}

	c.logger.Info("uploaded content",
		"content_id", uploadResponse.ContentID,
		"content_type", contentType,
		"size", len(data),
	)
	return uploadResponse.ContentID, nil
}
