package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/spf13/cobra"
)

// scaffold is a file template for "rapid gen".
type scaffold struct {
	kind  string
	paths []string // output paths relative to the root, templated
	body  []string // one body per path
}

var scaffolds = []scaffold{
	{
		kind:  "model",
		paths: []string{"models/{{.Snake}}.go"},
		body: []string{`package models

import (
	"github.com/marmos91/rapid/pkg/app"
	"github.com/marmos91/rapid/pkg/module"
)

type {{.Camel}} struct {
	ID uint ` + "`gorm:\"primaryKey\"`" + `
}

func init() {
	app.Register(module.KindModel, func(*app.App) (module.Artifact, error) {
		return &module.Model{Name: "{{.Snake}}", Value: &{{.Camel}}{}}, nil
	})
}
`},
	},
	{
		kind:  "router",
		paths: []string{"routers/{{.Snake}}.go"},
		body: []string{`package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/rapid/pkg/app"
	"github.com/marmos91/rapid/pkg/module"
	"github.com/marmos91/rapid/pkg/webserver"
)

func init() {
	app.Register(module.KindRouter, func(*app.App) (module.Artifact, error) {
		return &module.Router{Name: "{{.Snake}}", Routes: func(r chi.Router) {
			r.Get("/{{.Snake}}", func(w http.ResponseWriter, r *http.Request) {
				webserver.Success(w, http.StatusOK, map[string]string{"router": "{{.Snake}}"})
			})
		}}, nil
	})
}
`},
	},
	{
		kind:  "action",
		paths: []string{"actions/{{.Snake}}.go"},
		body: []string{`package actions

import (
	"context"

	"github.com/marmos91/rapid/pkg/app"
	"github.com/marmos91/rapid/pkg/module"
)

func init() {
	app.Register(module.KindAction, func(a *app.App) (module.Artifact, error) {
		return &module.Action{Name: "{{.Camel}}", Run: func(ctx context.Context, input any) (any, error) {
			return input, nil
		}}, nil
	})
}
`},
	},
	{
		kind:  "hook",
		paths: []string{"hooks/{{.Snake}}.go"},
		body: []string{`package hooks

import (
	"context"

	"github.com/marmos91/rapid/pkg/app"
	"github.com/marmos91/rapid/pkg/module"
)

func init() {
	app.Register(module.KindHook, func(a *app.App) (module.Artifact, error) {
		return &module.Hook{Name: "{{.Snake}}", On: map[module.Event]module.Callback{
			module.AfterStart: func(ctx context.Context) error {
				return nil
			},
		}}, nil
	})
}
`},
	},
	{
		kind:  "migration",
		paths: []string{"migrations/{{.Timestamp}}_{{.Snake}}.up.sql", "migrations/{{.Timestamp}}_{{.Snake}}.down.sql"},
		body:  []string{"-- {{.Snake}}\n", "-- revert {{.Snake}}\n"},
	},
	{
		kind:  "seed",
		paths: []string{"seeds/{{.Snake}}.sql"},
		body:  []string{"-- {{.Snake}}\n"},
	},
}

type scaffoldData struct {
	Snake     string
	Camel     string
	Timestamp string
}

func scaffoldKinds() []string {
	kinds := make([]string, 0, len(scaffolds))
	for _, s := range scaffolds {
		kinds = append(kinds, s.kind)
	}
	return kinds
}

func newGenCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "gen KIND NAME",
		Short: "Generate a module file",
		Long: fmt.Sprintf(`Generate a module file under the project root. Existing files are never
overwritten.

Kinds: %s

Examples:
  # Timestamped SQL migration pair
  rapid gen migration add_users

  # Router registered for discovery
  rapid gen router users`, strings.Join(scaffoldKinds(), ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := g.rootDir()
			if err != nil {
				return err
			}
			paths, err := generate(root, args[0], args[1], time.Now())
			if err != nil {
				return err
			}
			for _, p := range paths {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], p)
			}
			return nil
		},
	}
}

// generate renders the scaffold of kind for name into root and returns the
// written paths relative to root.
func generate(root, kind, name string, now time.Time) ([]string, error) {
	i := slices.IndexFunc(scaffolds, func(s scaffold) bool { return s.kind == kind })
	if i < 0 {
		return nil, fmt.Errorf("unknown template %q (valid: %s)", kind, strings.Join(scaffoldKinds(), ", "))
	}
	s := scaffolds[i]

	words := splitWords(name)
	if len(words) == 0 {
		return nil, fmt.Errorf("invalid name %q", name)
	}
	data := scaffoldData{
		Snake:     strings.Join(words, "_"),
		Camel:     camel(words),
		Timestamp: now.UTC().Format("20060102150405"),
	}

	rendered := make(map[string][]byte, len(s.paths))
	rels := make([]string, 0, len(s.paths))
	for j, p := range s.paths {
		rel, err := render(p, data)
		if err != nil {
			return nil, err
		}
		body, err := render(s.body[j], data)
		if err != nil {
			return nil, err
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err == nil {
			return nil, fmt.Errorf("a file already exists at %s", rel)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		rendered[abs] = []byte(body)
		rels = append(rels, rel)
	}

	for _, rel := range rels {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(abs, rendered[abs], 0644); err != nil {
			return nil, err
		}
	}
	return rels, nil
}

func render(text string, data scaffoldData) (string, error) {
	tmpl, err := template.New("").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// splitWords lowercases name and splits it on separators and camel-case
// boundaries: "addUser-email" -> [add user email].
func splitWords(name string) []string {
	var (
		words []string
		cur   []rune
		prev  rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	for _, r := range name {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			cur = append(cur, unicode.ToLower(r))
		default:
			cur = append(cur, unicode.ToLower(r))
		}
		prev = r
	}
	flush()
	return words
}

func camel(words []string) string {
	var b strings.Builder
	for _, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
