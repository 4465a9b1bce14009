package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/rapid/internal/cli/output"
	"github.com/marmos91/rapid/pkg/module"
)

// moduleInfo is one row of the modules listing.
type moduleInfo struct {
	Kind   string `json:"kind" yaml:"kind"`
	Name   string `json:"name" yaml:"name"`
	Order  string `json:"order,omitempty" yaml:"order,omitempty"`
	Source string `json:"source" yaml:"source"`
}

type moduleList []moduleInfo

func (l moduleList) Headers() []string { return []string{"KIND", "NAME", "ORDER", "SOURCE"} }

func (l moduleList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, m := range l {
		order := m.Order
		if order == "" {
			order = "-"
		}
		rows = append(rows, []string{m.Kind, m.Name, order, m.Source})
	}
	return rows
}

func newModulesCmd(g *globals) *cobra.Command {
	var (
		format string
		kind   string
	)

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the modules the application resolves",
		Long: `List the modules discovered for each category, in invocation order.
Nothing is invoked.

Examples:
  # List every module
  rapid modules

  # Only migrations, as JSON
  rapid modules --kind migrations -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			kinds := module.Kinds
			if kind != "" {
				k, err := module.ParseKind(kind)
				if err != nil {
					return err
				}
				kinds = []module.Kind{k}
			}

			root, opts, err := g.load()
			if err != nil {
				return err
			}
			set, err := g.newApp(root, opts).ResolveModules(cmd.Context())
			if err != nil {
				return err
			}

			list := moduleList{}
			for _, k := range kinds {
				for _, d := range module.Sort(set.Get(k)) {
					list = append(list, moduleInfo{
						Kind:   k.String(),
						Name:   d.Label(),
						Order:  orderString(d.Order),
						Source: displaySource(root, d.Source),
					})
				}
			}
			return output.NewPrinter(cmd.OutOrStdout(), f).Print(list)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format (table, json, yaml)")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only list one category (models, routers, actions, seeds, migrations, hooks)")
	return cmd
}

func orderString(o module.Order) string {
	if !o.IsSet() {
		return ""
	}
	return o.String()
}

// displaySource shortens sources inside root to a relative path.
func displaySource(root, source string) string {
	if source == "" {
		return ""
	}
	rel, err := filepath.Rel(root, source)
	if err != nil || strings.HasPrefix(rel, "..") {
		return source
	}
	return filepath.ToSlash(rel)
}
