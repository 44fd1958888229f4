package importer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openmigrate/mfdata/pkg/schema"
)

func waveRelMapping(t *testing.T, prefixed bool) Mapping {
	t.Helper()
	reg := testRegistry(t)
	app, ok := reg.Get("application")
	require.True(t, ok)
	attr, ok := app.Attribute("wave_id")
	require.True(t, ok)
	return Mapping{SchemaName: "application", Attribute: attr, RawHeader: "wave_id", Prefixed: prefixed}
}

func appRelMapping(t *testing.T) Mapping {
	t.Helper()
	reg := testRegistry(t)
	srv, ok := reg.Get("server")
	require.True(t, ok)
	attr, ok := srv.Attribute("app_id")
	require.True(t, ok)
	return Mapping{SchemaName: "server", Attribute: attr, RawHeader: "app_id"}
}

func TestRelationshipValueType(t *testing.T) {
	// display attribute differs from the attribute name: cells carry names
	require.Equal(t, "name", relationshipValueType(appRelMapping(t)))

	// multi-select always carries names
	require.Equal(t, "name", relationshipValueType(waveRelMapping(t, false)))

	// prefixed headers force name lookup
	idAttr := schema.Attribute{
		Name:                "peer_id",
		Type:                schema.TypeRelationship,
		RelEntity:           "server",
		RelKey:              "peer_id",
		RelDisplayAttribute: "peer_id",
	}
	require.Equal(t, "id", relationshipValueType(Mapping{Attribute: idAttr}))
	require.Equal(t, "name", relationshipValueType(Mapping{Attribute: idAttr, Prefixed: true}))
}

func TestMismatchedItem(t *testing.T) {
	records := []Record{
		{"wave_name": "Wave 1", "wave_id": "10"},
		{"wave_name": "Wave 2", "wave_id": "20"},
		{"wave_name": "Wave 1", "wave_id": "11"},
	}

	conflict := MismatchedItem(records, "wave_name", "Wave 1", "wave_id")
	require.NotNil(t, conflict)
	require.Equal(t, "11", conflict["wave_id"])

	require.Nil(t, MismatchedItem(records, "wave_name", "Wave 2", "wave_id"))
	require.Nil(t, MismatchedItem(records, "wave_name", "Wave 3", "wave_id"))

	agreeing := []Record{
		{"wave_name": "Wave 1", "wave_id": "10"},
		{"wave_name": "Wave 1", "wave_id": "10"},
	}
	require.Nil(t, MismatchedItem(agreeing, "wave_name", "Wave 1", "wave_id"))
}

func TestResolveRelationship_IDPassThrough(t *testing.T) {
	idAttr := schema.Attribute{
		Name:                "peer_id",
		Type:                schema.TypeRelationship,
		RelEntity:           "server",
		RelKey:              "peer_id",
		RelDisplayAttribute: "peer_id",
	}

	refs, notices := ResolveRelationship(MapView{}, Mapping{Attribute: idAttr}, "srv-42")
	require.Empty(t, notices)
	require.Len(t, refs, 1)
	require.Equal(t, RefResolved, refs[0].State)
	require.Equal(t, "srv-42", refs[0].ID)
	require.Equal(t, "srv-42", refs[0].Value())
}

func TestResolveRelationship_NameLookup(t *testing.T) {
	view := MapView{
		"wave": {
			{"wave_id": "0", "wave_name": "Unit testing Wave 0"},
		},
	}
	m := waveRelMapping(t, false)

	refs, notices := ResolveRelationship(view, m, "Unit testing Wave 0;Wave2")
	require.Empty(t, notices)
	require.Len(t, refs, 2)

	require.Equal(t, RefResolved, refs[0].State)
	require.Equal(t, "0", refs[0].ID)
	require.Equal(t, "Unit testing Wave 0", refs[0].Name)

	require.Equal(t, RefPending, refs[1].State)
	require.Equal(t, "Wave2", refs[1].Name)
	require.Equal(t, PendingPlaceholder, refs[1].Value())
}

func TestResolveRelationship_CaseSensitiveExactMatch(t *testing.T) {
	view := MapView{
		"application": {
			{"app_id": "a1", "app_name": "Billing"},
		},
	}

	refs, _ := ResolveRelationship(view, appRelMapping(t), "billing")
	require.Len(t, refs, 1)
	require.Equal(t, RefPending, refs[0].State)

	refs, _ = ResolveRelationship(view, appRelMapping(t), "Billing")
	require.Len(t, refs, 1)
	require.Equal(t, RefResolved, refs[0].State)
	require.Equal(t, "a1", refs[0].ID)
}

func TestResolveRelationship_MismatchedNamesStayPending(t *testing.T) {
	view := MapView{
		"application": {
			{"app_id": "a1", "app_name": "Billing"},
			{"app_id": "a2", "app_name": "Billing"},
		},
	}

	refs, notices := ResolveRelationship(view, appRelMapping(t), "Billing")
	require.Len(t, refs, 1)
	require.Equal(t, RefPending, refs[0].State)
	require.Len(t, notices, 1)
	require.Equal(t, SeverityWarning, notices[0].Severity)
	require.Contains(t, notices[0].Text, "reference left unresolved")
}

func TestResolveRelationship_StagedRecordWithoutKeyStaysPending(t *testing.T) {
	// a record staged earlier in the batch matches by name but has no id yet
	view := MapView{
		"application": {
			{"app_name": "Billing"},
		},
	}

	refs, notices := ResolveRelationship(view, appRelMapping(t), "Billing")
	require.Empty(t, notices)
	require.Len(t, refs, 1)
	require.Equal(t, RefPending, refs[0].State)
	require.Equal(t, "Billing", refs[0].Name)
}

func TestApplyReferences_MultiSelectShadow(t *testing.T) {
	rec := Record{}
	refs := []Reference{
		{State: RefResolved, ID: "0", Name: "Unit testing Wave 0"},
		{State: RefPending, Name: "Wave2"},
	}

	applyReferences(rec, waveRelMapping(t, false), refs, true)
	require.Equal(t, []string{"0", "tbc"}, rec["wave_id"])
	require.Equal(t, []string{"Unit testing Wave 0", "Wave2"}, rec["__wave_id"])
}

func TestApplyReferences_SingleSelect(t *testing.T) {
	rec := Record{}
	m := appRelMapping(t)

	applyReferences(rec, m, []Reference{{State: RefResolved, ID: "a1", Name: "Billing"}}, true)
	require.Equal(t, "a1", rec["app_id"])
	require.Equal(t, "Billing", rec["__app_id"])

	// id pass-through lookups never write shadow keys
	rec = Record{}
	applyReferences(rec, m, []Reference{{State: RefResolved, ID: "a1"}}, false)
	require.Equal(t, "a1", rec["app_id"])
	require.NotContains(t, rec, "__app_id")
}
