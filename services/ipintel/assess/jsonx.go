// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assess

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the first JSON object out of untrusted model text.
//
// # Description
//
// Model output routinely wraps JSON in code fences or prose. ExtractJSON
// strips fence markers, takes the widest {...} span, and tries to parse it.
// Malformed output is the expected common case, so the result is a tagged
// (value, ok) pair rather than an error: ok is false for empty input, a
// missing brace span, or a parse failure.
//
// # Inputs
//
//   - text: raw assistant text, possibly with leading/trailing prose
//
// # Outputs
//
//   - map[string]any: the parsed top-level object when ok
//   - bool: false when no parseable object was found
func ExtractJSON(text string) (map[string]any, bool) {
	if text == "" {
		return nil, false
	}

	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, false
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}
