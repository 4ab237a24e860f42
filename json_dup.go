package dynform

import eng "github.com/reoring/dynform/internal/engine"

// maxDuplicateIssues bounds the duplicate-key report of a single document.
const maxDuplicateIssues = 100

// detectDuplicateKeys scans raw JSON config text for repeated object keys.
// The implementation delegates to internal/engine.
func detectDuplicateKeys(data []byte) ConfigErrors {
	var out ConfigErrors
	for _, si := range eng.DetectDuplicateKeys(data, maxDuplicateIssues) {
		// parse errors are reported by the decoder
		if si.Code == "duplicate_key" || si.Code == "truncated" {
			out = append(out, ConfigError{Path: si.Path, Code: CodeDuplicateKey, Reason: si.Message})
		}
	}
	return out
}
