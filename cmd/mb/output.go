package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/modelbase/internal/client"
	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func currentFormat() (string, error) {
	if jsonOutput {
		return "json", nil
	}
	switch outputFormat {
	case "table", "json", "yaml":
		return outputFormat, nil
	}
	return "", fmt.Errorf("unknown output format %q (must be table, json or yaml)", outputFormat)
}

// render writes v as JSON or YAML when requested and otherwise calls table.
func render(w io.Writer, v any, table func(io.Writer)) error {
	format, err := currentFormat()
	if err != nil {
		return err
	}
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := toYAML(v)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	}
	table(w)
	return nil
}

// toYAML converts v through its JSON form so that document key order and
// custom marshalers carry over.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

// blockStyle drops the flow and quoting styles the JSON input implies.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func fieldTypeLabel(f *model.FieldDefinition) string {
	if f.Type == model.FieldTypeArray && f.ElementType != "" {
		return fmt.Sprintf("ARRAY<%s>", f.ElementType)
	}
	return string(f.Type)
}

func printFields(w io.Writer, fields []model.FieldDefinition, depth int) {
	for i := range fields {
		f := &fields[i]
		req := ""
		if !f.Required {
			req = ui.RenderMuted("optional")
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\n", strings.Repeat("  ", depth+1), f.Name, fieldTypeLabel(f), req)
		if f.Type == model.FieldTypeObject {
			printFields(w, f.NestedFields, depth+1)
		}
	}
}

func printDefinitionTable(w io.Writer, def *model.ModelDefinition) {
	fmt.Fprintf(w, "Model:       %s\n", def.ModelName)
	printFieldsBlock(w, def.Fields)
}

func printFieldsBlock(w io.Writer, fields []model.FieldDefinition) {
	fmt.Fprintf(w, "Fields:      %d\n", len(fields))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	printFields(tw, fields, 0)
	tw.Flush()
}

func printModelTable(w io.Writer, m *model.ModelScheme) {
	fmt.Fprintf(w, "Name:        %s\n", ui.RenderAccent(m.Name()))
	fmt.Fprintf(w, "ID:          %s\n", m.ID)
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At:  %s\n", m.CreatedAt.Format(timeLayout))
	}
	if !m.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated At:  %s\n", m.UpdatedAt.Format(timeLayout))
	}
	printFieldsBlock(w, m.Definition.Fields)
}

func printModelListTable(w io.Writer, models []*model.ModelScheme) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tFIELDS\tUPDATED")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.Name(), m.ID, len(m.Definition.Fields), m.UpdatedAt.Format(timeLayout))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d models\n", len(models))
}

// indentJSON pretty-prints data, returning it unchanged if it is not JSON.
func indentJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

func printDocumentTable(w io.Writer, doc *jsonvalue.Object) {
	data, err := jsonvalue.Marshal(doc)
	if err != nil {
		fmt.Fprintf(w, "Error marshaling document: %v\n", err)
		return
	}
	fmt.Fprintln(w, indentJSON(data))
}

func printDocumentListTable(w io.Writer, page *client.ListDocumentsResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOCUMENT")
	for _, doc := range page.Documents {
		id := ""
		if v, ok := doc.Get(model.PublicIDKey); ok {
			raw, _ := jsonvalue.Marshal(v)
			id = strings.Trim(string(raw), `"`)
		}
		body := doc.Clone()
		body.Delete(model.PublicIDKey)
		data, _ := jsonvalue.Marshal(body)
		line := string(data)
		if len(line) > 80 {
			line = line[:77] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\n", id, line)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d documents (%d total)\n", len(page.Documents), page.Total)
}

func printValidationTable(w io.Writer, res *model.ValidationResult) {
	if res.IsValid {
		fmt.Fprintln(w, ui.RenderPass("valid"))
	} else {
		fmt.Fprintln(w, ui.RenderFail("invalid"))
	}
	for _, line := range res.Log {
		if res.IsValid {
			fmt.Fprintf(w, "  %s\n", ui.RenderWarn(line))
		} else {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

func printEventsTable(w io.Writer, events []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tTOPIC\tDOCUMENT\tACTOR")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Format(timeLayout), e.Topic, e.DocumentID, e.Actor)
	}
	tw.Flush()
}
