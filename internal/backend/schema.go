/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Proposal payloads feed the local cache and the dashboard, so they are
// checked structurally before decoding.
const proposalSchemaJSON = `{
  "type": "object",
  "required": ["id", "topic"],
  "properties": {
    "id":             {"type": "integer"},
    "topic":          {"type": "string"},
    "description":    {"type": ["string", "null"]},
    "style":          {"type": ["string", "null"]},
    "image_url":      {"type": ["string", "null"]},
    "wallet_address": {"type": ["string", "null"]},
    "status":         {"type": ["string", "null"]}
  }
}`

var (
	proposalSchema     = mustSchema(proposalSchemaJSON)
	proposalListSchema = mustSchema(`{"type": "array", "items": ` + proposalSchemaJSON + `}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("backend: invalid built-in schema: %v", err))
	}
	return s
}

// SchemaError lists the violations of a response payload.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "unexpected response shape: " + strings.Join(e.Problems, "; ")
}

func validate(s *gojsonschema.Schema, data []byte) error {
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate response: %w", err)
	}
	if res.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, e := range res.Errors() {
		se.Problems = append(se.Problems, e.String())
	}
	return se
}
