package db

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// IntegrityCheck runs PRAGMA integrity_check and returns the problems it
// reports. An empty slice means the store is healthy.
func (d *DB) IntegrityCheck(ctx context.Context) ([]string, error) {
	rows, err := d.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("integrity check: %w", err)
		}
		if msg != "ok" {
			problems = append(problems, msg)
		}
	}
	return problems, rows.Err()
}

// Size returns the store size in bytes as page_count * page_size.
func (d *DB) Size(ctx context.Context) (int64, error) {
	var pages, pageSize int64
	if err := d.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pages); err != nil {
		return 0, fmt.Errorf("reading page_count: %w", err)
	}
	if err := d.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("reading page_size: %w", err)
	}
	return pages * pageSize, nil
}

// Backup writes a compacted, consistent copy of the store to dest.
// dest must not exist.
func (d *DB) Backup(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup target %s already exists", dest)
	}
	if strings.ContainsRune(dest, 0) {
		return fmt.Errorf("invalid backup target %q", dest)
	}
	if _, err := d.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("backing up to %s: %w", dest, err)
	}
	return nil
}
