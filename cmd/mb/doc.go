package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/modelbase/internal/client"
	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
)

var docCmd = &cobra.Command{
	Use:     "doc",
	Short:   "Store and query documents of a model",
	GroupID: "documents",
}

// withValidationLog prints the validator log of a rejected document to
// stderr and wraps err.
func withValidationLog(cmd *cobra.Command, action string, err error) error {
	for _, line := range client.ValidationLog(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", line)
	}
	return fmt.Errorf("%s: %w", action, err)
}

var docCreateCmd = &cobra.Command{
	Use:   "create <model> <file|->",
	Short: "Validate and store a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		doc, err := modelClient.CreateDocument(cmd.Context(), args[0], raw)
		if err != nil {
			return withValidationLog(cmd, "creating document", err)
		}
		return render(cmd.OutOrStdout(), doc, func(w io.Writer) { printDocumentTable(w, doc) })
	},
}

var docGetCmd = &cobra.Command{
	Use:   "get <model> <id>",
	Short: "Get a document by id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := modelClient.GetDocument(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("getting document: %w", err)
		}
		return render(cmd.OutOrStdout(), doc, func(w io.Writer) { printDocumentTable(w, doc) })
	},
}

var docListCmd = &cobra.Command{
	Use:   "list <model>",
	Short: "List documents of a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		filter, _ := cmd.Flags().GetString("filter")

		page, err := modelClient.ListDocuments(cmd.Context(), args[0], &client.ListDocumentsRequest{
			Limit:  limit,
			Offset: offset,
			Filter: filter,
		})
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		if page.Documents == nil {
			page.Documents = []*jsonvalue.Object{}
		}
		return render(cmd.OutOrStdout(), page, func(w io.Writer) { printDocumentListTable(w, page) })
	},
}

var docUpdateCmd = &cobra.Command{
	Use:   "update <model> <id> <file|->",
	Short: "Merge fields into a document, creating it if it does not exist",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args[2])
		if err != nil {
			return err
		}
		doc, created, err := modelClient.UpdateDocument(cmd.Context(), args[0], args[1], raw)
		if err != nil {
			return withValidationLog(cmd, "updating document", err)
		}
		return render(cmd.OutOrStdout(), doc, func(w io.Writer) {
			if created {
				fmt.Fprintf(w, "Created document %s\n", args[1])
			}
			printDocumentTable(w, doc)
		})
	},
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <model> <id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := modelClient.DeleteDocument(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %s from %s\n", args[1], args[0])
		return nil
	},
}

// errInvalid makes validate exit non-zero without repeating the log.
var errInvalid = errors.New("document is invalid")

var docValidateCmd = &cobra.Command{
	Use:   "validate <model> <file|->",
	Short: "Check a document against a model without storing it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		res, err := modelClient.ValidateDocument(cmd.Context(), args[0], raw)
		if err != nil {
			return fmt.Errorf("validating document: %w", err)
		}
		if err := render(cmd.OutOrStdout(), res, func(w io.Writer) { printValidationTable(w, res) }); err != nil {
			return err
		}
		if !res.IsValid {
			return errInvalid
		}
		return nil
	},
}

func init() {
	docListCmd.Flags().Int("limit", 0, "maximum number of documents (server default 50, max 500)")
	docListCmd.Flags().Int("offset", 0, "number of documents to skip")
	docListCmd.Flags().String("filter", "", "jq expression; documents yielding a truthy value are kept")

	docCmd.AddCommand(docCreateCmd)
	docCmd.AddCommand(docGetCmd)
	docCmd.AddCommand(docListCmd)
	docCmd.AddCommand(docUpdateCmd)
	docCmd.AddCommand(docDeleteCmd)
	docCmd.AddCommand(docValidateCmd)
}
