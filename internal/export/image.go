/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"

	_ "golang.org/x/image/webp"
)

// maxImageBytes caps downloaded proposal images.
const maxImageBytes = 16 << 20

// ErrUnsupportedImage is returned for data no registered decoder accepts.
var ErrUnsupportedImage = errors.New("unsupported image format")

// FetchImage downloads the image at url.
func FetchImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("fetch image: larger than %d bytes", maxImageBytes)
	}
	return data, nil
}

// pdfImage returns data in a form gofpdf can embed and the matching image
// type. PNG, JPEG and GIF pass through; anything else that decodes (WebP) is
// re-encoded as PNG.
func pdfImage(data []byte) ([]byte, string, image.Config, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", image.Config{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	switch format {
	case "png", "jpeg", "gif":
		return data, format, cfg, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", image.Config{}, fmt.Errorf("decode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", image.Config{}, fmt.Errorf("re-encode %s: %w", format, err)
	}
	return buf.Bytes(), "png", cfg, nil
}
