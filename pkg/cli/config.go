package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/rapid/internal/cli/output"
	"github.com/marmos91/rapid/pkg/config"
	"github.com/marmos91/rapid/pkg/database"
)

const redacted = "********"

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(newConfigShowCmd(g), newConfigSchemaCmd(), newConfigValidateCmd(g))
	return cmd
}

func newConfigShowCmd(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Long: `Print the configuration after merging the file, the environment and the
defaults. Passwords are redacted.

Examples:
  # Show as YAML
  rapid config show

  # Show as JSON
  rapid config show -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			if f == output.FormatTable {
				f = output.FormatYAML
			}

			_, opts, err := g.load()
			if err != nil {
				return err
			}
			if opts.Database.Password != "" {
				opts.Database.Password = redacted
			}

			// Options only carries yaml keys; go through YAML so JSON uses them too.
			raw, err := yaml.Marshal(opts)
			if err != nil {
				return err
			}
			var doc map[string]any
			if err := yaml.Unmarshal(raw, &doc); err != nil {
				return err
			}
			return output.NewPrinter(cmd.OutOrStdout(), f).Print(doc)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func newConfigSchemaCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate JSON schema for configuration",
		Long: `Generate a JSON schema for the rapid configuration file.

Examples:
  # Print schema to stdout
  rapid config schema

  # Save schema to file
  rapid config schema --file rapid.schema.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reflector := jsonschema.Reflector{
				FieldNameTag: "yaml",
				// Unknown keys are kept for user modules.
				AllowAdditionalProperties: true,
				DoNotReference:            true,
			}

			schema := reflector.Reflect(&config.Options{})
			schema.Version = "https://json-schema.org/draft/2020-12/schema"
			schema.Title = "Rapid Configuration"
			schema.Description = "Configuration schema for rapid applications"

			schemaJSON, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to generate schema: %w", err)
			}

			if file != "" {
				if err := os.WriteFile(file, schemaJSON, 0644); err != nil {
					return fmt.Errorf("failed to write schema file: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", file)
				return nil
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(schemaJSON))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "output file (default: stdout)")
	return cmd
}

func newConfigValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Validate the configuration file and environment overrides.

Checks for syntax errors, missing required fields, and invalid values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, opts, err := g.load()
			if err != nil {
				return err
			}

			p := output.NewPrinter(cmd.OutOrStdout(), output.FormatTable)
			source := config.ConfigFile(g.configFile, root)
			if source == "" {
				source = "(none, defaults and environment)"
			}
			p.Printf("Configuration file: %s\n", source)
			p.Printf("Validation: OK\n")

			if warnings := configWarnings(opts); len(warnings) > 0 {
				p.Printf("\nWarnings:\n")
				for _, w := range warnings {
					p.Printf("  - %s\n", w)
				}
			}

			p.Printf("\nConfiguration summary:\n")
			p.Printf("  Environment:     %s\n", opts.Environment)
			p.Printf("  Database:        %s\n", describeDatabase(opts))
			p.Printf("  Webserver:       %s\n", describeWebserver(opts))
			p.Printf("  Log level:       %s\n", opts.Logging.Level)
			return nil
		},
	}
}

func configWarnings(opts *config.Options) []string {
	var warnings []string
	if opts.IsProduction() && !opts.DatabaseDisabled && opts.Database.Client == database.ClientSQLite {
		warnings = append(warnings, "SQLite database in production")
	}
	if opts.RunMigrateLatest && opts.RunMigrateRollback {
		warnings = append(warnings, "run_migrate_latest and run_migrate_rollback are both set; latest wins")
	}
	if opts.DatabaseDisabled && (opts.RunSeeds || opts.RunMigrateLatest || opts.RunMigrateRollback) {
		warnings = append(warnings, "database is disabled; seed and migration flags have no effect")
	}
	if opts.IsProduction() && opts.Webserver.CORS && slices.Contains(opts.Webserver.CORSOrigins, "*") {
		warnings = append(warnings, "CORS allows every origin in production")
	}
	return warnings
}

func describeDatabase(opts *config.Options) string {
	if opts.DatabaseDisabled {
		return "disabled"
	}
	return opts.Database.String()
}

func describeWebserver(opts *config.Options) string {
	if opts.WebserverDisabled {
		return "disabled"
	}
	return fmt.Sprintf("%s:%d%s", opts.Webserver.Host, opts.Webserver.Port, opts.Webserver.APIPrefix)
}
