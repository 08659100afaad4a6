// Package utils holds the lenient JSON handling shared by upstream report
// bodies and model replies.
package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// StripCodeFence removes one outer ``` block, with or without a language
// tag, and surrounding whitespace.
func StripCodeFence(s string) string {
	cleaned := strings.TrimSpace(s)
	if !strings.HasPrefix(cleaned, "```") || !strings.HasSuffix(cleaned, "```") || len(cleaned) < 6 {
		return cleaned
	}
	cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "```"), "```")
	// drop the language tag on the opening line
	if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 && !strings.ContainsAny(cleaned[:nl], "{[") {
		cleaned = cleaned[nl+1:]
	}
	return strings.TrimSpace(cleaned)
}

// RepairJSON fixes common defects such as trailing commas, single quotes,
// unquoted keys and unclosed brackets.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %w", err)
	}
	return repaired, nil
}

// ParseHJSON converts Hjson (comments, unquoted strings, optional commas)
// into standard JSON.
func ParseHJSON(data string) (string, error) {
	var result any
	if err := hjson.Unmarshal([]byte(data), &result); err != nil {
		return "", fmt.Errorf("hjson parse failed: %w", err)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("hjson re-encode failed: %w", err)
	}
	return string(out), nil
}

// SmartParse decodes input into v trying, in order, standard JSON, repaired
// JSON and Hjson. The standard decoder's error is returned when all fail.
func SmartParse(input string, v any) error {
	firstErr := json.Unmarshal([]byte(input), v)
	if firstErr == nil {
		return nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}

	if converted, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("all parse strategies failed: %w", firstErr)
}
