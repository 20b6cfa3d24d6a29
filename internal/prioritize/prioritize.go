// Package prioritize flattens a generated folder tree into path-resolved file
// descriptors and orders them by how much each file shapes the rest of the
// implementation.
package prioritize

import (
	"cmp"
	"path"
	"slices"
	"strings"

	"github.com/dotcommander/architect/internal/domain/blueprint"
)

// DefaultBatchSize is the number of files that receive implementation
// contexts in one stage-3 call.
const DefaultBatchSize = 10

// Flatten walks the tree depth-first and returns every file exactly once, in
// pre-order. A folder's own files carry the path accumulated from its
// ancestors; the root, having none, contributes its own name.
func Flatten(root *blueprint.FolderNode) []blueprint.FileDescriptor {
	if root == nil {
		return []blueprint.FileDescriptor{}
	}
	files := make([]blueprint.FileDescriptor, 0, root.CountFiles())
	return flatten(root, "", files)
}

func flatten(folder *blueprint.FolderNode, currentPath string, acc []blueprint.FileDescriptor) []blueprint.FileDescriptor {
	filePath := currentPath
	if filePath == "" {
		filePath = folder.Name
	}
	for _, f := range folder.Files {
		acc = append(acc, blueprint.FileDescriptor{
			Name:        f.Name,
			Path:        filePath,
			Description: f.Description,
		})
	}
	for i := range folder.Subfolders {
		sub := &folder.Subfolders[i]
		next := sub.Name
		if currentPath != "" {
			next = currentPath + "/" + sub.Name
		}
		acc = flatten(sub, next, acc)
	}
	return acc
}

// Rank returns a copy of files ordered by descending Score. Equal scores keep
// their flatten order.
func Rank(files []blueprint.FileDescriptor) []blueprint.FileDescriptor {
	type scored struct {
		file  blueprint.FileDescriptor
		score int
	}
	items := make([]scored, len(files))
	for i, f := range files {
		items[i] = scored{file: f, score: Score(f)}
	}
	slices.SortStableFunc(items, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	ranked := make([]blueprint.FileDescriptor, len(items))
	for i, it := range items {
		ranked[i] = it.file
	}
	return ranked
}

// SelectTop ranks files and returns at most k of them. Fewer than k files is
// not an error.
func SelectTop(files []blueprint.FileDescriptor, k int) []blueprint.FileDescriptor {
	if k <= 0 {
		return []blueprint.FileDescriptor{}
	}
	ranked := Rank(files)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// Prioritize flattens root and selects its k most important files.
func Prioritize(root *blueprint.FolderNode, k int) []blueprint.FileDescriptor {
	return SelectTop(Flatten(root), k)
}

// FormatList renders descriptors as the bullet list embedded in the stage-3
// instruction.
func FormatList(files []blueprint.FileDescriptor) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString("- ")
		b.WriteString(f.FullPath())
		b.WriteString(": ")
		b.WriteString(f.Description)
		b.WriteString("\n")
	}
	return b.String()
}

func extension(name string) string {
	return strings.ToLower(path.Ext(name))
}
