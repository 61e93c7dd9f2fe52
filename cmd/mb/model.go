package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/modelbase/internal/model"
)

var modelCmd = &cobra.Command{
	Use:     "model",
	Short:   "Register and inspect models",
	GroupID: "models",
}

var modelCreateCmd = &cobra.Command{
	Use:   "create <name> <sample.json|->",
	Short: "Infer a model from a sample document and register it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sample, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			def, err := modelClient.InferModel(cmd.Context(), args[0], sample)
			if err != nil {
				return fmt.Errorf("inferring model: %w", err)
			}
			return render(cmd.OutOrStdout(), def, func(w io.Writer) { printDefinitionTable(w, def) })
		}
		m, err := modelClient.CreateModel(cmd.Context(), args[0], sample)
		if err != nil {
			return fmt.Errorf("creating model: %w", err)
		}
		return render(cmd.OutOrStdout(), m, func(w io.Writer) { printModelTable(w, m) })
	},
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		models, err := modelClient.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing models: %w", err)
		}
		if models == nil {
			models = []*model.ModelScheme{}
		}
		return render(cmd.OutOrStdout(), models, func(w io.Writer) { printModelListTable(w, models) })
	},
}

var modelShowCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Show a model by name or ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := modelClient.GetModel(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting model: %w", err)
		}
		return render(cmd.OutOrStdout(), m, func(w io.Writer) { printModelTable(w, m) })
	},
}

var modelReplaceCmd = &cobra.Command{
	Use:   "replace <ref> <sample.json|->",
	Short: "Re-infer a model from a new sample, replacing its definition",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sample, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		m, err := modelClient.ReplaceModel(cmd.Context(), args[0], sample)
		if err != nil {
			return fmt.Errorf("replacing model: %w", err)
		}
		return render(cmd.OutOrStdout(), m, func(w io.Writer) { printModelTable(w, m) })
	},
}

var modelDeleteCmd = &cobra.Command{
	Use:   "delete <ref>",
	Short: "Delete a model and all of its documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := modelClient.DeleteModel(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting model: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted model %s\n", args[0])
		return nil
	},
}

var modelSampleCmd = &cobra.Command{
	Use:   "sample <ref>",
	Short: "Generate a document that satisfies a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := httpClient.SampleDocument(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("generating sample: %w", err)
		}
		return render(cmd.OutOrStdout(), doc, func(w io.Writer) { printDocumentTable(w, doc) })
	},
}

var modelSchemaCmd = &cobra.Command{
	Use:   "schema <ref>",
	Short: "Export a model as JSON Schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := httpClient.ModelSchema(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("exporting schema: %w", err)
		}
		// A JSON Schema has no table form; table output falls back to JSON.
		return render(cmd.OutOrStdout(), raw, func(w io.Writer) {
			fmt.Fprintln(w, indentJSON(raw))
		})
	},
}

var modelImportCmd = &cobra.Command{
	Use:   "import <definition.json|->",
	Short: "Register or replace a model from an explicit definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		m, created, err := httpClient.ImportDefinition(cmd.Context(), def)
		if err != nil {
			return fmt.Errorf("importing definition: %w", err)
		}
		return render(cmd.OutOrStdout(), m, func(w io.Writer) {
			verb := "Replaced"
			if created {
				verb = "Created"
			}
			fmt.Fprintf(w, "%s model %s\n", verb, m.Name())
			printModelTable(w, m)
		})
	},
}

var modelEventsCmd = &cobra.Command{
	Use:   "events <ref>",
	Short: "Show the change history of a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evts, err := httpClient.ModelEvents(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		if evts == nil {
			evts = []*model.Event{}
		}
		return render(cmd.OutOrStdout(), evts, func(w io.Writer) { printEventsTable(w, evts) })
	},
}

func init() {
	modelCreateCmd.Flags().Bool("dry-run", false, "infer and print the definition without registering it")

	modelCmd.AddCommand(modelCreateCmd)
	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelShowCmd)
	modelCmd.AddCommand(modelReplaceCmd)
	modelCmd.AddCommand(modelDeleteCmd)
	modelCmd.AddCommand(modelSampleCmd)
	modelCmd.AddCommand(modelSchemaCmd)
	modelCmd.AddCommand(modelImportCmd)
	modelCmd.AddCommand(modelEventsCmd)
}
