package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmigrate/mfdata/pkg/configuration"
	"github.com/openmigrate/mfdata/pkg/schema"
)

func newSchemasCmd() *cobra.Command {
	cfg := configuration.Use()
	var schemaDir string

	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List the loaded schema definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(schemaDir)
			if err != nil {
				return err
			}
			type attrInfo struct {
				Name      string `json:"name"`
				Type      string `json:"type"`
				Required  bool   `json:"required,omitempty"`
				RelEntity string `json:"rel_entity,omitempty"`
			}
			for _, s := range reg.Schemas() {
				attrs := make([]attrInfo, 0, len(s.Attributes))
				for _, a := range s.Attributes {
					attrs = append(attrs, attrInfo{
						Name:      a.Name,
						Type:      string(a.Type),
						Required:  a.Required,
						RelEntity: a.RelEntity,
					})
				}
				out := struct {
					Schema       string     `json:"schema_name"`
					KeyAttribute string     `json:"key_attribute"`
					DisplayAttr  string     `json:"display_attribute"`
					Attributes   []attrInfo `json:"attributes"`
				}{s.Name, s.KeyAttribute(), s.DisplayAttribute(), attrs}
				if err := writeJSONLine(out); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schemas", cfg.SchemaDir, "directory of schema definition files")
	return cmd
}

func loadRegistry(dir string) (*schema.Registry, error) {
	reg, err := schema.LoadDir(dir)
	if err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("load schemas: %w", err))
	}
	return reg, nil
}
