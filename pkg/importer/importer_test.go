package importer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openmigrate/mfdata/pkg/schema"
)

// testRegistry builds the wave/application/server/database registry the
// engine tests share. Registration order is the order ambiguity notices and
// summaries report schemas in.
func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	wave := schema.Schema{
		Name: "wave",
		Attributes: []schema.Attribute{
			{Name: "wave_id", Type: schema.TypeString, System: true},
			{Name: "wave_name", Type: schema.TypeString, Required: true},
			{Name: "wave_status", Type: schema.TypeList, ListValue: "Not started|In progress|Completed"},
		},
	}
	application := schema.Schema{
		Name:        "application",
		KeyAttr:     "app_id",
		DisplayAttr: "app_name",
		Attributes: []schema.Attribute{
			{Name: "app_id", Type: schema.TypeString, System: true},
			{Name: "app_name", Type: schema.TypeString, Required: true},
			{
				Name:                "wave_id",
				Type:                schema.TypeRelationship,
				RelEntity:           "wave",
				RelKey:              "wave_id",
				RelDisplayAttribute: "wave_name",
				ListMultiSelect:     true,
			},
		},
	}
	server := schema.Schema{
		Name: "server",
		Attributes: []schema.Attribute{
			{Name: "server_id", Type: schema.TypeString, System: true},
			{Name: "server_name", Type: schema.TypeString, Required: true},
			{
				Name:                "app_id",
				Type:                schema.TypeRelationship,
				RelEntity:           "application",
				RelKey:              "app_id",
				RelDisplayAttribute: "app_name",
			},
			{Name: "server_os_family", Type: schema.TypeList, ListValue: "windows|linux"},
			{
				Name:               "server_fqdn",
				Type:               schema.TypeString,
				ValidationRegex:    `^[a-zA-Z0-9.-]+$`,
				ValidationRegexMsg: "Server FQDN must contain only letters, digits, dots and dashes.",
			},
			{Name: "server_environment", Type: schema.TypeString},
			{Name: "tags", Type: schema.TypeTag},
			{Name: "securedrive", Type: schema.TypeCheckbox},
			{Name: "migration_notes", Type: schema.TypeJSON},
		},
	}
	database := schema.Schema{
		Name: "database",
		Attributes: []schema.Attribute{
			{Name: "database_id", Type: schema.TypeString, System: true},
			{Name: "database_name", Type: schema.TypeString, Required: true},
			{
				Name:                "app_id",
				Type:                schema.TypeRelationship,
				RelEntity:           "application",
				RelKey:              "app_id",
				RelDisplayAttribute: "app_name",
			},
			{Name: "database_type", Type: schema.TypeList, ListValue: "mysql|mssql|oracle|postgresql"},
		},
	}

	reg, err := schema.NewRegistry(wave, application, server, database)
	require.NoError(t, err)
	return reg
}

func rowWith(index int, cells map[string]string) Row {
	return Row{Index: index, Cells: cells}
}
