package wizard

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
)

// DiscoverWorkflows lists workflow files in a local .github/workflows dir
func DiscoverWorkflows(workflowDir string) ([]string, error) {
	entries, err := os.ReadDir(workflowDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflows directory: %w", err)
	}

	var workflows []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if isWorkflowFile(entry.Name()) {
			workflows = append(workflows, entry.Name())
		}
	}

	sort.Strings(workflows)
	return workflows, nil
}

func isWorkflowFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}
