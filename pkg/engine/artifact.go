package engine

import (
	"sort"

	"github.com/syedsany6/a2a-runtime/pkg/a2a"
)

// mergeArtifact applies one yielded artifact to task.Artifacts per §4.4/I3:
// match by index first, then by name, then append as a new artifact; when
// the match is append-mode, deep-copy the existing artifact, extend its
// parts, merge metadata, and overwrite description/lastChunk. Re-sorts by
// index afterward if any artifact in the set carries an explicit index.
func mergeArtifact(task *a2a.Task, incoming a2a.Artifact) {
	if i := findArtifactMatch(task.Artifacts, incoming); i >= 0 {
		if incoming.Append != nil && *incoming.Append {
			task.Artifacts[i] = extendArtifact(task.Artifacts[i], incoming)
		} else {
			task.Artifacts[i] = incoming
		}
	} else {
		task.Artifacts = append(task.Artifacts, incoming)
	}

	sortArtifactsByIndex(task.Artifacts)
}

func findArtifactMatch(existing []a2a.Artifact, incoming a2a.Artifact) int {
	if incoming.IndexSet {
		for i, a := range existing {
			if a.IndexSet && a.Index == incoming.Index {
				return i
			}
		}
	}
	if incoming.Name != nil {
		for i, a := range existing {
			if a.Name != nil && *a.Name == *incoming.Name {
				return i
			}
		}
	}
	return -1
}

func extendArtifact(existing, incoming a2a.Artifact) a2a.Artifact {
	merged := existing.Clone()
	merged.Parts = append(merged.Parts, incoming.Parts...)

	if len(incoming.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]any, len(incoming.Metadata))
		}
		for k, v := range incoming.Metadata {
			merged.Metadata[k] = v
		}
	}

	if incoming.Description != nil {
		merged.Description = incoming.Description
	}
	if incoming.LastChunk != nil {
		merged.LastChunk = incoming.LastChunk
	}

	return merged
}

func sortArtifactsByIndex(artifacts []a2a.Artifact) {
	anyIndexed := false
	for _, a := range artifacts {
		if a.IndexSet {
			anyIndexed = true
			break
		}
	}
	if !anyIndexed {
		return
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].Index < artifacts[j].Index
	})
}
