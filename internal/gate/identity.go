// Package gate implements the two local interceptors that reuse the
// identity contract to admit or refuse a pending prompt or a pending
// file/command operation: the prompt gate and the operation gate.
package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Descriptor is the identity descriptor file read from
// <project>/.claude/instance-identity.json.
type Descriptor struct {
	InstanceID     string   `json:"instance_id"`
	BranchPrefix   string   `json:"branch_prefix"`
	ForbiddenPaths []string `json:"forbidden_paths"`
	CanMerge       bool     `json:"can_merge"`
}

const descriptorRelPath = ".claude/instance-identity.json"

// FindProjectRoot walks up from dir looking for the nearest ancestor
// containing a .claude directory.
func FindProjectRoot(dir string) (string, bool) {
	dir = filepath.Clean(dir)
	for {
		info, err := os.Stat(filepath.Join(dir, ".claude"))
		if err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadDescriptor reads and parses the identity descriptor under root.
// It requires instance_id to be non-empty. A missing branch_prefix is
// not rejected: it reads as empty, and no branch check then applies.
func LoadDescriptor(root string) (Descriptor, error) {
	path := filepath.Join(root, descriptorRelPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if d.InstanceID == "" {
		return Descriptor{}, fmt.Errorf("%s: missing instance_id", path)
	}
	return d, nil
}
