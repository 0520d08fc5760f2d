package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/prakashgbid/caia-sub003/pkg/models"
)

type exportNode struct {
	ID          string        `yaml:"id"`
	Level       string        `yaml:"level"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description,omitempty"`
	Confidence  float64       `yaml:"confidence"`
	ExternalRef string        `yaml:"external_ref,omitempty"`
	Children    []*exportNode `yaml:"children,omitempty"`
}

type exportDoc struct {
	Hierarchy string        `yaml:"hierarchy"`
	Nodes     int           `yaml:"nodes"`
	Roots     []*exportNode `yaml:"roots"`
}

// exportHierarchy writes the hierarchy as a nested YAML tree.
func exportHierarchy(h *models.Hierarchy, path string) error {
	doc := exportDoc{Hierarchy: h.ID, Nodes: h.Len()}
	for _, rootID := range h.Roots() {
		doc.Roots = append(doc.Roots, exportSubtree(h, h.Node(rootID)))
	}

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal hierarchy: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func exportSubtree(h *models.Hierarchy, n *models.HierarchyNode) *exportNode {
	out := &exportNode{
		ID:          n.ID,
		Level:       n.Level.String(),
		Title:       n.Title,
		Description: n.Description,
		Confidence:  n.Confidence,
		ExternalRef: n.ExternalRef,
	}
	for _, childID := range h.Children(n.ID) {
		out.Children = append(out.Children, exportSubtree(h, h.Node(childID)))
	}
	return out
}
