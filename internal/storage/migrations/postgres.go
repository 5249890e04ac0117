package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"solana-signal-engine/internal/storage/postgres"
)

// Migration is one embedded SQL file.
type Migration struct {
	Name string
	SQL  string
}

// RunPostgresMigrations applies the embedded postgres migrations in name order.
// Every file must be idempotent; nothing records which ones already ran.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migs, err := Load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	return apply(ctx, migs, func(ctx context.Context, m Migration) error {
		_, err := pool.Exec(ctx, m.SQL)
		return err
	})
}

// Load reads every non-empty .sql file under dir, sorted by name.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	names, err := sqlFiles(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dir, err)
	}
	migs := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		migs = append(migs, Migration{Name: name, SQL: string(data)})
	}
	return migs, nil
}

func apply(ctx context.Context, migs []Migration, exec func(context.Context, Migration) error) error {
	for _, m := range migs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := exec(ctx, m); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return nil
}

func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
