package postgres

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/saveourtool/save-cloud/pkg/conn/db/postgres/pool"
	kschema "github.com/saveourtool/save-cloud/pkg/domain/schema/db"
	xe "github.com/saveourtool/save-cloud/pkg/errors"
)

type pgSchema struct {
	pool kpool.Pool

	// directory containing one sub-directory per version ("1", "2", ...).
	repository string
}

var _ kschema.SchemaInterface = &pgSchema{}

// New returns a schema manager reading SQL files from repository.
func New(pool kpool.Pool, repository string) kschema.SchemaInterface {
	return &pgSchema{pool: pool, repository: repository}
}

type version struct {
	Number int
	Root   string
}

// apply runs every *.sql file under the version directory in lexical order.
func (v version) apply(ctx context.Context, q kpool.Queryer) error {
	return filepath.WalkDir(v.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		query, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, string(query)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	})
}

func currentVersion(ctx context.Context, q kpool.Queryer) (int, error) {
	var v *int
	if err := q.QueryRow(
		ctx, `select max("version") from "schema_version"`,
	).Scan(&v); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UndefinedTable {
			return 0, nil
		}
		return -1, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

func (s *pgSchema) Version(ctx context.Context) (int, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return -1, xe.Wrap(err)
	}
	defer conn.Release()

	return currentVersion(ctx, conn)
}

func (s *pgSchema) Upgrade(ctx context.Context) error {
	versions, err := s.versions()
	if err != nil {
		return xe.Wrap(err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `select pg_advisory_xact_lock(hashtext('schema_version'))`); err != nil {
		return xe.Wrap(err)
	}

	current, err := currentVersion(ctx, tx)
	if err != nil {
		return xe.Wrap(err)
	}

	for _, v := range versions {
		if v.Number <= current {
			continue
		}
		if err := v.apply(ctx, tx); err != nil {
			return xe.Wrap(err)
		}
		if _, err := tx.Exec(ctx, `delete from "schema_version"`); err != nil {
			return xe.Wrap(err)
		}
		if _, err := tx.Exec(
			ctx, `insert into "schema_version" ("version") values ($1)`, v.Number,
		); err != nil {
			return xe.Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (s *pgSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return cctx, func() {}
	}
	if err := w.Add(s.repository); err != nil {
		w.Close()
		cancel(err)
		return cctx, func() {}
	}

	checkVersion := func() {
		versions, err := s.versions()
		if err != nil {
			cancel(fmt.Errorf("failed to read schema repository: %w", err))
			return
		}
		current, err := s.Version(cctx)
		if err != nil {
			cancel(fmt.Errorf("failed to get current schema version: %w", err))
			return
		}
		if len(versions) == 0 {
			return
		}
		if latest := versions[len(versions)-1].Number; current < latest {
			cancel(fmt.Errorf(
				"schema is outdated: %d (in database) < %d (in repository)", current, latest,
			))
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				if filepath.Clean(s.repository) != filepath.Dir(ev.Name) {
					continue
				}
				checkVersion()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(err)
				return
			}
		}
	}()

	checkVersion()
	return cctx, func() { cancel(nil) }
}

// versions lists version directories in the repository, in ascending order.
func (s *pgSchema) versions() ([]version, error) {
	entries, err := os.ReadDir(s.repository)
	if err != nil {
		return nil, err
	}

	vs := make([]version, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		vs = append(vs, version{Number: n, Root: filepath.Join(s.repository, entry.Name())})
	}
	slices.SortFunc(vs, func(a, b version) int { return cmp.Compare(a.Number, b.Number) })
	return vs, nil
}

// Null is a schema manager without repository.
//
// It cannot upgrade anything, and never tells the schema is outdated.
func Null() kschema.SchemaInterface {
	return nullSchema{}
}

type nullSchema struct{}

func (nullSchema) Upgrade(context.Context) error {
	return errors.New("no schema repository available")
}

func (nullSchema) Version(context.Context) (int, error) {
	return -1, nil
}

func (nullSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return ctx, func() {}
}
