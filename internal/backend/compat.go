/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SupportedServers is the backend version range this client speaks.
const SupportedServers = ">= 0.3.0, < 1.0.0"

// ServerVersion returns the backend's version string from GET /version.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	data, _, err := c.call(ctx, http.MethodGet, "/version", nil, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// CheckCompatibility fetches the server version and matches it against
// SupportedServers.
func (c *Client) CheckCompatibility(ctx context.Context) (string, error) {
	raw, err := c.ServerVersion(ctx)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return raw, fmt.Errorf("server returned an empty version")
	}
	v, err := semver.NewVersion(strings.TrimPrefix(fields[0], "artdao-server/"))
	if err != nil {
		return raw, fmt.Errorf("server version %q: %w", raw, err)
	}
	constraint, err := semver.NewConstraint(SupportedServers)
	if err != nil {
		return raw, err
	}
	if !constraint.Check(v) {
		return raw, fmt.Errorf("server version %s is outside supported range %q", v, SupportedServers)
	}
	return raw, nil
}
