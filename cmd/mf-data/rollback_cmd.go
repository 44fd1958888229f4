package main

import (
	"github.com/spf13/cobra"

	"github.com/openmigrate/mfdata/pkg/configuration"
	"github.com/openmigrate/mfdata/pkg/importer"
	"github.com/openmigrate/mfdata/pkg/inventory"
	"github.com/openmigrate/mfdata/pkg/logging"
)

func newRollbackCmd() *cobra.Command {
	cfg := configuration.Use()
	var (
		manifestPath string
		schemaDir    string
		inventoryDir string
	)

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Undo an applied import run from its manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Setup(cfg.LogLevel, cfg.LogFormat)
			bus := newRunBus(log)

			var manifest inventory.Manifest
			if err := readJSONFile(manifestPath, &manifest); err != nil {
				return err
			}

			reg, err := loadRegistry(schemaDir)
			if err != nil {
				return err
			}
			store, err := inventory.Open(inventoryDir, reg, log)
			if err != nil {
				return withCode(exitIO, err)
			}

			removed, restored, err := store.Rollback(&manifest)
			if err != nil {
				return withCode(exitValidation, err)
			}
			if err := store.Save(); err != nil {
				return withCode(exitIO, err)
			}

			bus.Publish(importer.RolledBackEvent{
				RunID:    manifest.RunID,
				Removed:  removed,
				Restored: restored,
			})
			return writeJSONLine(struct {
				RunID    string `json:"run_id"`
				Removed  int    `json:"removed"`
				Restored int    `json:"restored"`
			}{manifest.RunID.String(), removed, restored})
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest written by an applied run")
	cmd.Flags().StringVar(&schemaDir, "schemas", cfg.SchemaDir, "directory of schema definition files")
	cmd.Flags().StringVar(&inventoryDir, "inventory", cfg.InventoryDir, "directory of inventory snapshots")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}
