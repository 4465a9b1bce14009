package resolver

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/marmos91/rapid/pkg/module"
)

// ErrMissingUp is returned for a down migration without its up file.
var ErrMissingUp = errors.New("down migration has no matching up migration")

// ErrDuplicateVersion is returned when two files of one directory share a
// migration version and direction.
var ErrDuplicateVersion = errors.New("duplicate migration version")

// sqlModules globs SQL files matching patterns and turns them into
// descriptors. File contents are read here so a broken file fails
// resolution instead of a later stage.
func (r *Resolver[H]) sqlModules(ctx context.Context, kind module.Kind, patterns []string) ([]candidate[H], error) {
	fsys := afero.NewIOFS(afero.NewBasePathFs(r.fs, r.root))

	seen := make(map[string]struct{})
	var files []string
	for _, p := range patterns {
		if strings.HasSuffix(p, ".go") {
			continue
		}
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, &Error{Kind: kind, Err: fmt.Errorf("pattern %q: %w", p, err)}
		}
		for _, m := range matches {
			if path.Ext(m) != ".sql" || r.ignored(m) {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kind == module.KindSeed {
		return r.sqlSeeds(files)
	}
	return r.sqlMigrations(files)
}

func (r *Resolver[H]) read(kind module.Kind, name string) (string, error) {
	data, err := afero.ReadFile(afero.NewBasePathFs(r.fs, r.root), name)
	if err != nil {
		return "", &Error{Kind: kind, Path: name, Err: err}
	}
	return string(data), nil
}

func (r *Resolver[H]) sqlSeeds(files []string) ([]candidate[H], error) {
	out := make([]candidate[H], 0, len(files))
	for _, f := range files {
		body, err := r.read(module.KindSeed, f)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(path.Base(f), ".sql")
		seed := &module.Seed{Name: name, Run: execSQL(body)}
		out = append(out, candidate[H]{
			path: f,
			desc: sqlDescriptor[H](seed, r.abs(f)),
		})
	}
	return out, nil
}

type sqlPair struct {
	up, down         string
	upBody, downBody string
	version          uint
	identifier       string
}

func (r *Resolver[H]) sqlMigrations(files []string) ([]candidate[H], error) {
	pairs := make(map[string]*sqlPair)
	var keys []string

	for _, f := range files {
		m, err := source.Parse(path.Base(f))
		if err != nil {
			return nil, &Error{Kind: module.KindMigration, Path: f, Err: fmt.Errorf("malformed migration filename: %w", err)}
		}
		key := fmt.Sprintf("%s/%d", path.Dir(f), m.Version)
		p, ok := pairs[key]
		if !ok {
			p = &sqlPair{version: m.Version}
			pairs[key] = p
			keys = append(keys, key)
		}

		body, err := r.read(module.KindMigration, f)
		if err != nil {
			return nil, err
		}

		switch m.Direction {
		case source.Up:
			if p.up != "" {
				return nil, &Error{Kind: module.KindMigration, Path: f, Err: fmt.Errorf("%w %d (also %s)", ErrDuplicateVersion, m.Version, p.up)}
			}
			p.up, p.upBody, p.identifier = f, body, m.Identifier
		case source.Down:
			if p.down != "" {
				return nil, &Error{Kind: module.KindMigration, Path: f, Err: fmt.Errorf("%w %d (also %s)", ErrDuplicateVersion, m.Version, p.down)}
			}
			p.down, p.downBody = f, body
		}
	}

	out := make([]candidate[H], 0, len(keys))
	for _, key := range keys {
		p := pairs[key]
		if p.up == "" {
			return nil, &Error{Kind: module.KindMigration, Path: p.down, Err: ErrMissingUp}
		}
		mig := &module.Migration{
			Name: fmt.Sprintf("%d_%s", p.version, p.identifier),
			Up:   execSQL(p.upBody),
		}
		if p.down != "" {
			mig.Down = execSQL(p.downBody)
		}
		out = append(out, candidate[H]{
			path: p.up,
			desc: sqlDescriptor[H](mig, r.abs(p.up)),
		})
	}
	return out, nil
}

func (r *Resolver[H]) abs(rel string) string {
	return path.Join(strings.ReplaceAll(r.root, `\`, "/"), rel)
}

func sqlDescriptor[H any](a module.Artifact, source string) module.Descriptor[H] {
	return module.Descriptor[H]{
		Meta: module.Meta{Name: a.ArtifactName(), Source: source},
		Factory: func(H) (module.Artifact, error) {
			return a, nil
		},
	}
}

func execSQL(body string) module.DBFunc {
	return func(ctx context.Context, db *gorm.DB) error {
		if strings.TrimSpace(body) == "" {
			return nil
		}
		return db.WithContext(ctx).Exec(body).Error
	}
}
