package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmigrate/mfdata/pkg/configuration"
	"github.com/openmigrate/mfdata/pkg/sheet"
)

func newTemplateCmd() *cobra.Command {
	cfg := configuration.Use()
	var (
		schemaDir   string
		output      string
		schemaNames []string
	)

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Generate an intake workbook with one column per schema attribute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(schemaDir)
			if err != nil {
				return err
			}
			for _, name := range schemaNames {
				if _, ok := reg.Get(name); !ok {
					return withCode(exitUsage, fmt.Errorf("unknown schema %q", name))
				}
			}
			if err := sheet.WriteTemplate(output, reg, schemaNames); err != nil {
				return withCode(exitIO, err)
			}
			included := schemaNames
			if len(included) == 0 {
				included = reg.Names()
			}
			return writeJSONLine(struct {
				Template string   `json:"template"`
				Schemas  []string `json:"schemas"`
			}{output, included})
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schemas", cfg.SchemaDir, "directory of schema definition files")
	cmd.Flags().StringVarP(&output, "output", "o", "intake-template.xlsx", "workbook to write")
	cmd.Flags().StringSliceVar(&schemaNames, "schema", nil, "restrict the template to these schemas (default: all)")
	return cmd
}
