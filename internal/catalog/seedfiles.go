package catalog

import (
	"context"
	"fmt"
)

// SeedChecksums returns the checksum recorded for every imported seed file.
func (db *DB) SeedChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, checksum FROM seed_files`)
	if err != nil {
		return nil, fmt.Errorf("catalog: seed checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// PutSeedChecksum records that path was imported with the given checksum.
func (db *DB) PutSeedChecksum(ctx context.Context, path, checksum string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO seed_files (path, checksum) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum
	`, path, checksum)
	if err != nil {
		return fmt.Errorf("catalog: put seed checksum: %w", err)
	}
	return nil
}
