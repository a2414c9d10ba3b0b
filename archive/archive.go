// Package archive stores a whole resource tree in one SQLite file so a
// player can be shipped with a single data file instead of a directory.
package archive

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/mogaika/moiety/loader"
	"github.com/mogaika/moiety/resource"
	"github.com/mogaika/moiety/vfs"
)

type Archive struct {
	db *sql.DB
}

func Open(path string) (*Archive, error) {
	if path == "" {
		return nil, errors.New("[archive] empty archive path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "[archive] Cannot open %q", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Archive{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS resources (
			stack TEXT NOT NULL,
			type TEXT NOT NULL,
			id INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (stack, type, id)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return errors.Wrapf(err, "[archive] %s", s)
		}
	}
	return nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Fetch implements loader.Transport.
func (a *Archive) Fetch(ctx context.Context, key resource.Key) ([]byte, error) {
	var data []byte
	err := a.db.QueryRowContext(ctx,
		"SELECT data FROM resources WHERE stack = ? AND type = ? AND id = ?",
		key.Stack, string(key.Type), key.ID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(loader.ErrNotFound, "%v", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[archive] Cannot read %v", key)
	}
	return data, nil
}

func (a *Archive) Put(ctx context.Context, key resource.Key, data []byte) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO resources (stack, type, id, data) VALUES (?, ?, ?, ?)",
		key.Stack, string(key.Type), key.ID, data)
	return errors.Wrapf(err, "[archive] Cannot store %v", key)
}

// Keys lists the stored resources of stack, or of every stack when stack
// is empty.
func (a *Archive) Keys(ctx context.Context, stack string) ([]resource.Key, error) {
	q := "SELECT stack, type, id FROM resources"
	var args []interface{}
	if stack != "" {
		q += " WHERE stack = ?"
		args = append(args, stack)
	}
	q += " ORDER BY stack, type, id"

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "[archive] Cannot list resources")
	}
	defer rows.Close()

	var keys []resource.Key
	for rows.Next() {
		var k resource.Key
		var t string
		if err := rows.Scan(&k.Stack, &t, &k.ID); err != nil {
			return nil, err
		}
		k.Type = resource.Type(t)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Import copies a resource tree laid out as <stack>/<TYPE>/<id>.<ext>
// into the archive. Compressed files are stored decompressed. Entries that
// do not look like resources are skipped.
func (a *Archive) Import(ctx context.Context, root vfs.Directory, progress func(key resource.Key)) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "[archive] Cannot begin import")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO resources (stack, type, id, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	err = eachResource(root, func(key resource.Key, f vfs.File) error {
		data, err := vfs.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, key.Stack, string(key.Type), key.ID, data); err != nil {
			return errors.Wrapf(err, "[archive] Cannot store %v", key)
		}
		count++
		if progress != nil {
			progress(key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "[archive] Cannot commit import")
	}
	return count, nil
}

func eachResource(root vfs.Directory, f func(key resource.Key, file vfs.File) error) error {
	stacks, err := root.List()
	if err != nil {
		return err
	}
	for _, stack := range stacks {
		stackDir, err := vfs.DirectoryGetDirectory(root, stack)
		if err != nil {
			continue
		}
		types, err := stackDir.List()
		if err != nil {
			return err
		}
		for _, typeName := range types {
			t, err := resource.ParseType(typeName)
			if err != nil {
				log.Printf("[archive] skipping %s/%s: %v", stack, typeName, err)
				continue
			}
			typeDir, err := vfs.DirectoryGetDirectory(stackDir, typeName)
			if err != nil {
				continue
			}
			files, err := typeDir.List()
			if err != nil {
				return err
			}
			for _, name := range files {
				id, err := resource.ParseFileName(t, strings.TrimSuffix(name, vfs.ZstdSuffix))
				if err != nil {
					log.Printf("[archive] skipping %s/%s/%s: %v", stack, typeName, name, err)
					continue
				}
				file, err := vfs.DirectoryGetFile(typeDir, name)
				if err != nil {
					return err
				}
				if err := f(resource.Key{Stack: stack, Type: t, ID: id}, file); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
