package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/internal/domain/metric"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

func TestRun_RejectsBadInvocations(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"explode"}, `unknown command "explode"`},
		{"missing student", []string{"evaluate"}, "missing required flags: -student"},
		{"award flags", []string{"award", "-student", "a1"}, "missing required flags: -badge, -coach"},
		{"revoke reason", []string{"revoke", "-award", "x", "-coach", "c"}, "missing required flags: -reason"},
		{"badges subcommand", []string{"badges", "drop"}, "badges: expected one of"},
		{"metric subcommand", []string{"metric"}, "metric: expected one of"},
		{"migrate subcommand", []string{"migrate", "sideways"}, "migrate: expected one of"},
		{"athlete sport", []string{"athletes", "upsert", "-student", "a1"}, "missing required flags: -sport"},
		{"coach roster", []string{"coaches", "assign", "-coach", "c1"}, "missing required flags: -student"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(ctx, tt.args, &out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.Empty(t, out.String())
}

func TestRun_Help(t *testing.T) {
	err := run(context.Background(), nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestParseMetricValue(t *testing.T) {
	v, err := parseMetricValue("12.5")
	require.NoError(t, err)
	assert.Equal(t, metric.Number(12.5), v)

	v, err = parseMetricValue("true")
	require.NoError(t, err)
	assert.Equal(t, metric.Flag(true), v)

	v, err = parseMetricValue("1")
	require.NoError(t, err)
	assert.Equal(t, metric.Number(1), v)

	for _, bad := range []string{"fast", "NaN", "Inf", "-infinity", "1e400"} {
		_, err = parseMetricValue(bad)
		assert.Error(t, err, bad)
	}
}

func TestReadCatalogFile_BadgeArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badges.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{
			"id": "marathon",
			"name": "Marathoner",
			"level": "gold",
			"sport": "running",
			"is_active": true,
			"origin": {"kind": "system"},
			"rules": [
				{"id": "m1", "field_name": "longest_run_km", "operator": "gte", "threshold": 42.2, "weight": 1, "is_required": true}
			]
		}
	]`), 0o600))

	file, err := readCatalogFile(path)
	require.NoError(t, err)
	assert.Empty(t, file.Categories)
	require.Len(t, file.Badges, 1)
	assert.Equal(t, badge.LevelGold, file.Badges[0].Level)
	assert.Equal(t, badge.OpGreaterOrEqual, file.Badges[0].Rules[0].Operator)
	assert.True(t, file.Badges[0].Rules[0].Required)
	assert.NoError(t, file.prepare("all"))

	_, err = readCatalogFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestReadCatalogFile_WithCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`
	{
		"categories": [{"id": "endurance", "name": "Endurance"}],
		"badges": [
			{
				"id": "half-marathon",
				"name": "Half Marathoner",
				"category_id": "endurance",
				"level": "silver",
				"is_active": true,
				"origin": {"kind": "coach", "coach_id": "coach-3"},
				"rules": [
					{"id": "h1", "field_name": "longest_run_km", "operator": "gte", "threshold": 21.1, "weight": 1},
					{"id": "draft", "disabled": true}
				]
			}
		]
	}`), 0o600))

	file, err := readCatalogFile(path)
	require.NoError(t, err)
	require.NoError(t, file.prepare("running"))

	require.Len(t, file.Categories, 1)
	assert.Equal(t, badge.Category{ID: "endurance", Name: "Endurance"}, file.Categories[0])
	require.Len(t, file.Badges, 1)
	assert.Equal(t, "endurance", file.Badges[0].CategoryID)
	assert.Equal(t, "running", file.Badges[0].Sport)
	assert.True(t, file.Badges[0].Origin.IsCoachAuthored())
}

func TestCatalogFilePrepare_RejectsInvalidEntries(t *testing.T) {
	file := &catalogFile{
		Categories: []badge.Category{{ID: "endurance"}},
		Badges:     []badge.Badge{{ID: "empty", Name: "Empty", Level: badge.LevelBronze, Origin: badge.SystemOrigin()}},
	}

	err := file.prepare("all")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrBadgeConfigInvalid)
	assert.Contains(t, err.Error(), `category "endurance"`)
	assert.Contains(t, err.Error(), `badge "empty"`)
}
