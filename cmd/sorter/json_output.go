package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// bindJSONFlag registers --json on cmd.
func bindJSONFlag(cmd *cobra.Command, target *bool) {
	cmd.Flags().BoolVar(target, "json", false, "Output as JSON")
}

// writeJSON prints v as indented JSON followed by a newline. Nil slices are
// written as [] so scripts can always iterate the result.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	if string(data) == "null" {
		data = []byte("[]")
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
	return err
}
