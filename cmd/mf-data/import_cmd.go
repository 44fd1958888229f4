package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openmigrate/mfdata/pkg/configuration"
	"github.com/openmigrate/mfdata/pkg/eventbus"
	"github.com/openmigrate/mfdata/pkg/importer"
	"github.com/openmigrate/mfdata/pkg/inventory"
	"github.com/openmigrate/mfdata/pkg/logging"
	"github.com/openmigrate/mfdata/pkg/sheet"
)

type importOptions struct {
	input        string
	schemaDir    string
	inventoryDir string
	manifestDir  string
	reportPath   string
	maxRows      int
	apply        bool
}

func newImportCmd() *cobra.Command {
	cfg := configuration.Use()
	opts := importOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate a spreadsheet and reconcile it against the inventory",
		Long: `Validate a spreadsheet and reconcile it against the inventory.

Without --apply the command is a dry run: it prints the per-schema
Create/Update/NoChange plan and touches nothing. With --apply the plan is
committed to the inventory snapshot and a rollback manifest is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "spreadsheet to import (.csv or .xlsx)")
	cmd.Flags().StringVar(&opts.schemaDir, "schemas", cfg.SchemaDir, "directory of schema definition files")
	cmd.Flags().StringVar(&opts.inventoryDir, "inventory", cfg.InventoryDir, "directory of inventory snapshots")
	cmd.Flags().StringVar(&opts.manifestDir, "manifest-dir", cfg.ManifestDir, "directory applied runs write manifests to")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "write the full per-row validation report to this file")
	cmd.Flags().IntVar(&opts.maxRows, "max-rows", cfg.MaxRows, "maximum number of data rows accepted")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "commit the plan instead of dry-running")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runImport(opts importOptions) error {
	cfg := configuration.Use()
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	bus := newRunBus(log)

	reg, err := loadRegistry(opts.schemaDir)
	if err != nil {
		return err
	}

	rows, err := sheet.ReadFile(opts.input)
	if err != nil {
		return withCode(exitValidation, fmt.Errorf("parse %s: %w", opts.input, err))
	}
	if len(rows) == 0 {
		return withCode(exitValidation, fmt.Errorf("%s contains no data rows", opts.input))
	}
	if len(rows) > opts.maxRows {
		return withCode(exitValidation, fmt.Errorf("%s has %d data rows, limit is %d", opts.input, len(rows), opts.maxRows))
	}

	store, err := inventory.Open(opts.inventoryDir, reg, log)
	if err != nil {
		return withCode(exitIO, err)
	}

	result := importer.ValidateRows(reg, rows)
	summary := importer.BuildSummary(reg, &result, store)

	runID := uuid.New()
	errs, warns := countFindings(result.Rows)
	bus.Publish(importer.ValidatedEvent{
		RunID:       runID,
		Source:      opts.input,
		SchemaNames: result.SchemaNames,
		Rows:        len(result.Rows),
		Errors:      errs,
		Warnings:    warns,
	})

	if opts.reportPath != "" {
		report := struct {
			SchemaNames []string          `json:"schema_names"`
			Data        []importer.Row    `json:"data"`
			Summary     *importer.Summary `json:"summary"`
		}{result.SchemaNames, result.Rows, summary}
		if err := writeJSONFile(opts.reportPath, report); err != nil {
			return err
		}
	}

	if !opts.apply {
		return writeJSONLine(planOutput(runID, result, summary, errs, warns))
	}

	manifest, err := store.Apply(summary, runID, opts.input)
	if err != nil {
		return withCode(exitValidation, err)
	}
	if err := store.Save(); err != nil {
		return withCode(exitIO, err)
	}
	manifestPath := filepath.Join(opts.manifestDir, fmt.Sprintf("run-%s.json", runID))
	if err := writeJSONFile(manifestPath, manifest); err != nil {
		return err
	}

	bus.Publish(importer.AppliedEvent{
		RunID:     runID,
		Created:   len(manifest.Created),
		Updated:   len(manifest.Updated),
		Unchanged: manifest.Unchanged,
	})

	return writeJSONLine(struct {
		RunID    uuid.UUID `json:"run_id"`
		Applied  bool      `json:"applied"`
		Manifest string    `json:"manifest"`
		Created  int       `json:"created"`
		Updated  int       `json:"updated"`
		NoChange int       `json:"no_change"`
		Errors   int       `json:"errors"`
		Warnings int       `json:"warnings"`
	}{runID, true, manifestPath, len(manifest.Created), len(manifest.Updated), manifest.Unchanged, errs, warns})
}

type schemaPlan struct {
	Create   int `json:"create"`
	Update   int `json:"update"`
	NoChange int `json:"no_change"`
}

func planOutput(runID uuid.UUID, result importer.ValidationResult, summary *importer.Summary, errs, warns int) any {
	entities := map[string]schemaPlan{}
	for name, bucket := range summary.Entities {
		entities[name] = schemaPlan{
			Create:   len(bucket.Create),
			Update:   len(bucket.Update),
			NoChange: len(bucket.NoChange),
		}
	}
	return struct {
		RunID       uuid.UUID             `json:"run_id"`
		Applied     bool                  `json:"applied"`
		SchemaNames []string              `json:"schema_names"`
		Rows        int                   `json:"rows"`
		Errors      int                   `json:"errors"`
		Warnings    int                   `json:"warnings"`
		Entities    map[string]schemaPlan `json:"entities"`
	}{runID, false, result.SchemaNames, len(result.Rows), errs, warns, entities}
}

func countFindings(rows []importer.Row) (errs, warns int) {
	for _, r := range rows {
		errs += len(r.Validation.Errors)
		warns += len(r.Validation.Warnings)
	}
	return errs, warns
}

// newRunBus wires the run lifecycle events to the logger so every run leaves
// an audit trail regardless of which command triggered it.
func newRunBus(log *logrus.Logger) eventbus.EventBus {
	bus := eventbus.NewEventPublisher(log)
	bus.Subscribe(func(e importer.ValidatedEvent) {
		log.WithFields(logrus.Fields{
			"run_id":   e.RunID,
			"source":   e.Source,
			"schemas":  e.SchemaNames,
			"rows":     e.Rows,
			"errors":   e.Errors,
			"warnings": e.Warnings,
		}).Info("import validated")
	})
	bus.Subscribe(func(e importer.AppliedEvent) {
		log.WithFields(logrus.Fields{
			"run_id":    e.RunID,
			"created":   e.Created,
			"updated":   e.Updated,
			"unchanged": e.Unchanged,
		}).Info("import applied")
	})
	bus.Subscribe(func(e importer.RolledBackEvent) {
		log.WithFields(logrus.Fields{
			"run_id":   e.RunID,
			"removed":  e.Removed,
			"restored": e.Restored,
		}).Info("import rolled back")
	})
	return bus
}
