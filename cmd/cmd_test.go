// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/snapbite/snapbite/config"
	"github.com/snapbite/snapbite/ingest"
	"github.com/snapbite/snapbite/spatial"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt", "sub/c.webp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}

	images, err := findImages(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(dir, "sub", "c.webp"),
	}, images)
}

func TestParsePosition(t *testing.T) {
	c, err := parsePosition([]string{"37.7749", "-122.4194"})
	require.NoError(t, err)
	assert.Equal(t, spatial.Coordinates{Latitude: 37.7749, Longitude: -122.4194}, c)

	_, err = parsePosition([]string{"37.7749"})
	assert.Error(t, err)

	_, err = parsePosition([]string{"north", "0"})
	assert.Error(t, err)

	_, err = parsePosition([]string{"91", "0"})
	assert.Error(t, err)
}

func TestManualFlags(t *testing.T) {
	var m manualFlags

	cmd := &cobra.Command{Use: "add"}
	m.register(cmd)

	assert.Nil(t, m.fields(cmd), "no flags, no manual fields")

	require.NoError(t, cmd.ParseFlags([]string{
		"--name", "Tartine", "--price", "2", "--rating", "4.5",
		"--tag", "bakery", "--tag", "brunch", "--lat", "37.76", "--lng", "-122.42",
	}))

	f := m.fields(cmd)
	require.NotNil(t, f)

	rating := 4.5
	assert.Equal(t, &ingest.ManualFields{
		Name:        "Tartine",
		PriceRange:  "2",
		Rating:      &rating,
		Tags:        []string{"bakery", "brunch"},
		Coordinates: &spatial.Coordinates{Latitude: 37.76, Longitude: -122.42},
	}, f)
}

func TestPositionFlags(t *testing.T) {
	defer func(old *config.Config) { cfg = old }(cfg)

	cfg = config.Default()

	newCmd := func(args ...string) (*cobra.Command, *positionFlags) {
		var p positionFlags

		cmd := &cobra.Command{Use: "nearby"}
		p.register(cmd)
		require.NoError(t, cmd.ParseFlags(args))

		return cmd, &p
	}

	cmd, p := newCmd()
	_, err := p.resolve(cmd)
	assert.Error(t, err, "no flags and no configured location")

	lat, lng := -34.9011, -56.1645
	cfg.Location = config.LocationConfig{Latitude: &lat, Longitude: &lng}

	c, err := p.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, spatial.Coordinates{Latitude: lat, Longitude: lng}, c)

	cmd, p = newCmd("--lat", "37.7749", "--lng", "-122.4194")
	c, err = p.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, spatial.Coordinates{Latitude: 37.7749, Longitude: -122.4194}, c)
}

func TestPrintImportSummary(t *testing.T) {
	var buf bytes.Buffer

	printImportSummary(&buf, map[ingest.Outcome]int{ingest.Created: 1204, ingest.DuplicateRejected: 3}, 2)

	out := buf.String()
	assert.Contains(t, out, "│ created              │    1,204 │")
	assert.Contains(t, out, "│ duplicate            │        3 │")
	assert.Contains(t, out, "│ needs_manual_entry   │        0 │")
	assert.Contains(t, out, "│ failed               │        2 │")
}
