package importer

import "github.com/google/uuid"

// Events published on the process event bus around an import run.

type ValidatedEvent struct {
	RunID       uuid.UUID
	Source      string
	SchemaNames []string
	Rows        int
	Errors      int
	Warnings    int
}

type AppliedEvent struct {
	RunID     uuid.UUID
	Created   int
	Updated   int
	Unchanged int
}

type RolledBackEvent struct {
	RunID    uuid.UUID
	Removed  int
	Restored int
}
