package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vetoguard/veto/internal/domain/rule"
)

// defaultRulesRoot is the conventional root the loader walks recursively
// for *.yaml/*.yml rule files (spec §6).
const defaultRulesRoot = "rules"

// loadRuleSet walks root recursively for *.yaml/*.yml files and merges them
// into one RuleSet via rule.LoadAll. An empty root defaults to
// defaultRulesRoot.
func loadRuleSet(root string) (*rule.RuleSet, error) {
	if root == "" {
		root = defaultRulesRoot
	}

	files := make(map[string][]byte)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files[path] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rules root %q: %w", root, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rule files found under %q", root)
	}

	return rule.LoadAll(files)
}
