package cleaner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

// Content hashing is restricted to files above this size; smaller files
// bucket by (size, mtime) as a cheap equivalence class.
const duplicateHashThreshold = 1024 * 1024

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// detectDuplicates groups candidates by content identity within a single
// scan. For each group of two or more, the preferred original is kept and
// the rest count toward recoverable space.
func detectDuplicates(files []types.EnhancedFile, cancelled func() bool) ([]types.DuplicateGroup, int64) {
	groups := make(map[string][]*types.EnhancedFile)

	for i := range files {
		if cancelled() {
			return nil, 0
		}
		f := &files[i]
		var key string
		if f.Size > duplicateHashThreshold {
			hash, err := hashFile(f.Path)
			if err != nil {
				continue
			}
			key = "sha256:" + hash
		} else {
			key = fmt.Sprintf("eq:%d:%d", f.Size, f.LastModified.UnixNano())
		}
		groups[key] = append(groups[key], f)
	}

	var result []types.DuplicateGroup
	var recoverable int64

	for key, members := range groups {
		if len(members) < 2 {
			continue
		}

		// Prefer the older file, then the higher safety score, then the
		// lexically smaller (more canonical) location.
		sort.Slice(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if !a.LastModified.Equal(b.LastModified) {
				return a.LastModified.Before(b.LastModified)
			}
			if a.SafetyScore != b.SafetyScore {
				return a.SafetyScore > b.SafetyScore
			}
			return a.Path < b.Path
		})

		group := types.DuplicateGroup{
			Hash:       key,
			Original:   members[0].Path,
			MemberSize: members[0].Size,
		}
		for _, dup := range members[1:] {
			group.Duplicates = append(group.Duplicates, dup.Path)
			group.Recoverable += dup.Size
		}
		recoverable += group.Recoverable
		result = append(result, group)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Recoverable > result[j].Recoverable
	})
	return result, recoverable
}
