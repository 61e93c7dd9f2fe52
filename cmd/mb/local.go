package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/schema"
)

var inferCmd = &cobra.Command{
	Use:               "infer <name> <sample.json|->",
	Short:             "Infer a model definition from a sample, offline",
	GroupID:           "local",
	Args:              cobra.ExactArgs(2),
	PersistentPreRunE: noConnect,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := model.ValidateModelName(args[0]); err != nil {
			return err
		}
		sample, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		def, err := schema.Infer(args[0], sample)
		if err != nil {
			return fmt.Errorf("inferring model: %w", err)
		}
		return render(cmd.OutOrStdout(), def, func(w io.Writer) { printDefinitionTable(w, def) })
	},
}

var checkCmd = &cobra.Command{
	Use:               "check <definition.json> <document.json|->",
	Short:             "Validate a document against a definition file, offline",
	GroupID:           "local",
	Args:              cobra.ExactArgs(2),
	PersistentPreRunE: noConnect,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawDef, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		def, err := schema.ParseDefinition(rawDef)
		if err != nil {
			return err
		}
		rawDoc, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		doc, err := jsonvalue.ParseObject(rawDoc)
		if err != nil {
			return fmt.Errorf("document: %w", err)
		}

		strict, _ := cmd.Flags().GetBool("strict")
		var res model.ValidationResult
		if strict {
			res = schema.ValidateStrict(def, doc)
		} else {
			res = schema.Validate(def, doc)
		}
		if err := render(cmd.OutOrStdout(), &res, func(w io.Writer) { printValidationTable(w, &res) }); err != nil {
			return err
		}
		if !res.IsValid {
			return errInvalid
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Bool("strict", false, "treat missing required fields as errors")
}
