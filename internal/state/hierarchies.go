package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// SaveHierarchy upserts the hierarchy and all its nodes in one
// transaction. Node positions preserve insertion order so a load
// reconstructs parents before children. An empty idea keeps the
// stored one, so resume saves do not blank it.
func (db *DB) SaveHierarchy(h *models.Hierarchy, idea string) error {
	nodes := h.Nodes()
	now := formatTime(time.Now())

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO hierarchies (id, idea, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				idea = CASE WHEN excluded.idea = '' THEN hierarchies.idea ELSE excluded.idea END,
				updated_at = excluded.updated_at
		`, h.ID, idea, now, now)
		if err != nil {
			return fmt.Errorf("upsert hierarchy %s: %w", h.ID, err)
		}

		// Rework replaces subtrees wholesale, so stale rows are
		// cleared rather than diffed.
		if _, err := tx.Exec(`DELETE FROM nodes WHERE hierarchy_id = ?`, h.ID); err != nil {
			return fmt.Errorf("clear nodes for %s: %w", h.ID, err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO nodes (id, hierarchy_id, level, parent_id, position, title, description, confidence, status, external_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare node insert: %w", err)
		}
		defer stmt.Close()

		for i, n := range nodes {
			var parent, ref any
			if n.ParentID != "" {
				parent = n.ParentID
			}
			if n.ExternalRef != "" {
				ref = n.ExternalRef
			}
			createdAt := n.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			_, err := stmt.Exec(n.ID, h.ID, int(n.Level), parent, i, n.Title, n.Description,
				n.Confidence, string(n.Status), ref, formatTime(createdAt))
			if err != nil {
				return fmt.Errorf("insert node %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// LoadHierarchy reads a hierarchy back by ID. Returns sql.ErrNoRows
// wrapped when the ID is unknown.
func (db *DB) LoadHierarchy(id string) (*models.Hierarchy, error) {
	var exists string
	if err := db.QueryRow(`SELECT id FROM hierarchies WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("load hierarchy %s: %w", id, err)
	}

	rows, err := db.Query(`
		SELECT id, level, parent_id, title, description, confidence, status, external_ref, created_at
		FROM nodes WHERE hierarchy_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load nodes for %s: %w", id, err)
	}
	defer rows.Close()

	var nodes []*models.HierarchyNode
	for rows.Next() {
		var n models.HierarchyNode
		var level int
		var parent, ref, desc sql.NullString
		var status, createdAt string
		if err := rows.Scan(&n.ID, &level, &parent, &n.Title, &desc, &n.Confidence, &status, &ref, &createdAt); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Level = models.Level(level)
		n.ParentID = parent.String
		n.Description = desc.String
		n.Status = models.NodeStatus(status)
		n.ExternalRef = ref.String
		if t, err := parseTime(createdAt); err == nil {
			n.CreatedAt = t
		}
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes for %s: %w", id, err)
	}

	h, err := models.NewHierarchyFromNodes(id, nodes)
	if err != nil {
		return nil, fmt.Errorf("rebuild hierarchy %s: %w", id, err)
	}
	return h, nil
}

// PendingReplication returns the node IDs of a hierarchy that have no
// external ref yet. Resume keys off this set.
func (db *DB) PendingReplication(hierarchyID string) ([]string, error) {
	rows, err := db.Query(`
		SELECT id FROM nodes
		WHERE hierarchy_id = ? AND external_ref IS NULL
		ORDER BY position
	`, hierarchyID)
	if err != nil {
		return nil, fmt.Errorf("query pending nodes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending node: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateExternalRef records a node's external key after replication.
func (db *DB) UpdateExternalRef(nodeID, externalRef string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE nodes SET external_ref = ?, status = ? WHERE id = ?`,
			externalRef, string(models.NodeStatusValidated), nodeID)
		if err != nil {
			return fmt.Errorf("update external ref for %s: %w", nodeID, err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("node %s not found", nodeID)
		}
		return nil
	})
}

// ListHierarchies returns the stored hierarchy IDs with their ideas,
// newest first.
func (db *DB) ListHierarchies() (map[string]string, error) {
	rows, err := db.Query(`SELECT id, idea FROM hierarchies ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list hierarchies: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, idea string
		if err := rows.Scan(&id, &idea); err != nil {
			return nil, fmt.Errorf("scan hierarchy: %w", err)
		}
		out[id] = idea
	}
	return out, rows.Err()
}
