package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/darmado/postman2burp/internal/collection"
	"github.com/darmado/postman2burp/internal/vars"
)

// ExtractOptions holds the extract command's flag values.
type ExtractOptions struct {
	Collection string
	Output     string
}

// NewExtractCommand creates the extract command, which collects every
// placeholder in a collection and writes an insertion-point template.
func NewExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the variable set from a collection",
		Long: "Walk the collection, collect the union of {{variable}} placeholders, and\n" +
			"write an insertion-point template ready to be filled in.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return extractVariables(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Collection, "collection", "c", "", "Collection file (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Template output path (default variables-<collection id>.json)")
	cmd.MarkFlagRequired("collection")

	return cmd
}

// templateValue mirrors the insertion-point entry shape.
type templateValue struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

type template struct {
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name"`
	Values []templateValue `json:"values"`
}

func extractVariables(cmd *cobra.Command, opts *ExtractOptions) error {
	out := cmd.OutOrStdout()

	coll, err := collection.Load(opts.Collection)
	if err != nil {
		return err
	}
	descriptors, err := collection.Flatten(coll, nil)
	if err != nil {
		return err
	}

	names := CollectVariables(descriptors)

	values := make([]templateValue, 0, len(names))
	for _, name := range names {
		value := ""
		if v, ok := coll.Defaults()[name]; ok {
			value = v
		}
		values = append(values, templateValue{Key: name, Value: value, Enabled: true})
	}

	doc := template{
		ID:     coll.Info.PostmanID,
		Name:   coll.Info.Name,
		Values: values,
	}

	path := opts.Output
	if path == "" {
		id := coll.Info.PostmanID
		if id == "" {
			id = "collection"
		}
		path = fmt.Sprintf("variables-%s.json", id)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing template: %w", err)
	}

	fmt.Fprintf(out, "Found %d variables in %s\n", len(names), coll.Info.Name)
	fmt.Fprintf(out, "Template written to %s\n", path)
	return nil
}

// CollectVariables returns the union of placeholder names across every
// templated field of every descriptor, in first-appearance order.
func CollectVariables(descriptors []collection.RequestDescriptor) []string {
	var sets [][]string
	for _, desc := range descriptors {
		sets = append(sets, vars.Extract(desc.URL))
		for _, h := range desc.Headers {
			sets = append(sets, vars.Extract(h.Key), vars.Extract(h.Value))
		}
		if desc.Body != nil {
			sets = append(sets, vars.Extract(desc.Body.Raw))
			for _, p := range desc.Body.URLEncoded {
				sets = append(sets, vars.Extract(p.Key), vars.Extract(p.Value))
			}
			for _, p := range desc.Body.FormData {
				sets = append(sets, vars.Extract(p.Key), vars.Extract(p.Value))
			}
		}
	}
	return vars.Union(sets...)
}
