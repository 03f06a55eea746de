package store

import (
	"encoding/json"
	"fmt"

	"github.com/lilseedabe/flickmv/internal/canon"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

// marshalProject encodes p as JSON TEXT for storage. Struct field order
// and sorted markers make the encoding stable for a given project.
func marshalProject(p timeline.Project) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal project: %w", err)
	}
	return string(data), nil
}

// unmarshalProject parses and validates stored JSON TEXT.
func unmarshalProject(data string) (timeline.Project, error) {
	var p timeline.Project
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return timeline.Project{}, fmt.Errorf("unmarshal project: %w", err)
	}
	return p, nil
}

// projectHash is the content hash of an encoded project.
func projectHash(data string) string {
	return canon.HashWithDomain(canon.DomainProject, []byte(data))
}

// entryHash covers every stored column of an entry plus the previous hash.
func entryHash(sessionID string, seq int64, id, kind, description, before, after, prev string) (string, error) {
	return canon.Hash(canon.DomainHistory, map[string]any{
		"session_id":  sessionID,
		"seq":         seq,
		"id":          id,
		"kind":        kind,
		"description": description,
		"before":      projectHash(before),
		"after":       projectHash(after),
		"prev_hash":   prev,
	})
}

// ProjectHash returns the content hash of p as it would be stored.
func ProjectHash(p timeline.Project) (string, error) {
	data, err := marshalProject(p)
	if err != nil {
		return "", err
	}
	return projectHash(data), nil
}
