/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package studio

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Match is a known proposal title close to an intent.
type Match struct {
	Title    string
	Distance int
}

// maxRatio is the largest edit distance, relative to the longer string, that
// still counts as a near duplicate.
const maxRatio = 0.3

// NearDuplicates returns the titles whose normalized edit distance to intent
// is at most maxRatio, closest first. It only looks at titles the client
// already holds and complements the backend similarity check.
func NearDuplicates(intent string, titles []string) []Match {
	a := normalize(intent)
	if a == "" {
		return nil
	}
	var out []Match
	seen := map[string]bool{}
	for _, t := range titles {
		b := normalize(t)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		d := levenshtein.ComputeDistance(a, b)
		longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
		if float64(d) <= maxRatio*float64(longest) {
			out = append(out, Match{Title: t, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
