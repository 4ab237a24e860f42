// Package engine holds low-level helpers over raw config text.
package engine

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// SimpleIssue is a minimal issue representation used by internal helpers.
type SimpleIssue struct {
	Code    string
	Path    string // JSON Pointer of the offending key
	Message string
}

type frame struct {
	array        bool
	keys         map[string]struct{}
	expectingKey bool
	seg          string // segment of the child currently being read
	next         int    // next array index
}

// DetectDuplicateKeys reports object keys that appear more than once in the
// same JSON object. maxIssues < 0 means unlimited; 0 disables detection; a
// positive value truncates the result and appends a "truncated" issue.
// Syntax errors end the scan with a single parse_error issue.
func DetectDuplicateKeys(data []byte, maxIssues int) []SimpleIssue {
	if maxIssues == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var (
		issues []SimpleIssue
		stack  []frame
	)
	// beginValue records the position of a value inside its container.
	beginValue := func() {
		if len(stack) == 0 {
			return
		}
		top := &stack[len(stack)-1]
		if top.array {
			top.seg = strconv.Itoa(top.next)
			top.next++
			return
		}
		top.expectingKey = true
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			issues = append(issues, SimpleIssue{Code: "parse_error", Path: "/", Message: err.Error()})
			break
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				beginValue()
				stack = append(stack, frame{keys: map[string]struct{}{}, expectingKey: true})
			case '[':
				beginValue()
				stack = append(stack, frame{array: true})
			case '}', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		case string:
			if n := len(stack); n > 0 && !stack[n-1].array && stack[n-1].expectingKey {
				top := &stack[n-1]
				top.seg = v
				top.expectingKey = false
				if _, dup := top.keys[v]; dup {
					issues = append(issues, SimpleIssue{
						Code:    "duplicate_key",
						Path:    pointer(stack),
						Message: "key '" + v + "' duplicated",
					})
					if maxIssues > 0 && len(issues) >= maxIssues {
						return append(issues, SimpleIssue{Code: "truncated", Path: "/", Message: "max issues reached"})
					}
				}
				top.keys[v] = struct{}{}
				continue
			}
			beginValue()
		default:
			beginValue()
		}
	}
	return issues
}

func pointer(stack []frame) string {
	var b strings.Builder
	for _, f := range stack {
		b.WriteByte('/')
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(f.seg, "~", "~0"), "/", "~1"))
	}
	return b.String()
}
