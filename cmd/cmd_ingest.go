// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"
	"github.com/schollz/progressbar/v3"
	"github.com/snapbite/snapbite/ingest"
	"github.com/snapbite/snapbite/spatial"
	"github.com/snapbite/snapbite/utils/textutils"
	"github.com/snapbite/snapbite/vision"
	"github.com/spf13/cobra"
)

// imageExtensions are the files picked up by import.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif"}

type manualFlags struct {
	Name        string
	Address     string
	Cuisine     string
	PriceRange  string
	Rating      float64
	PhoneNumber string
	Website     string
	Tags        []string
	Notes       string
	position    positionFlags
}

func (m *manualFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.Name, "name", "", "Restaurant name")
	cmd.Flags().StringVar(&m.Address, "address", "", "Street address")
	cmd.Flags().StringVar(&m.Cuisine, "cuisine", "", "Cuisine type")
	cmd.Flags().StringVar(&m.PriceRange, "price", "", "Price range: $ to $$$$, or 1 to 4")
	cmd.Flags().Float64Var(&m.Rating, "rating", 0, "Rating between 0 and 5")
	cmd.Flags().StringVar(&m.PhoneNumber, "phone", "", "Phone number")
	cmd.Flags().StringVar(&m.Website, "website", "", "Website")
	cmd.Flags().StringSliceVar(&m.Tags, "tag", nil, "Tag, may be repeated")
	cmd.Flags().StringVar(&m.Notes, "notes", "", "Free text notes")
	cmd.Flags().Float64Var(&m.position.Latitude, "lat", 0, "Latitude, skips geocoding")
	cmd.Flags().Float64Var(&m.position.Longitude, "lng", 0, "Longitude, skips geocoding")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
}

// fields returns nil when no manual flag was given.
func (m *manualFlags) fields(cmd *cobra.Command) *ingest.ManualFields {
	changed := false
	for _, name := range []string{"name", "address", "cuisine", "price", "rating", "phone", "website", "tag", "notes", "lat"} {
		changed = changed || cmd.Flags().Changed(name)
	}

	if !changed {
		return nil
	}

	f := &ingest.ManualFields{
		Name:        m.Name,
		Address:     m.Address,
		Cuisine:     m.Cuisine,
		PriceRange:  m.PriceRange,
		PhoneNumber: m.PhoneNumber,
		Website:     m.Website,
		Tags:        m.Tags,
		Notes:       m.Notes,
	}

	if cmd.Flags().Changed("rating") {
		rating := m.Rating
		f.Rating = &rating
	}

	if cmd.Flags().Changed("lat") {
		f.Coordinates = &spatial.Coordinates{Latitude: m.position.Latitude, Longitude: m.position.Longitude}
	}

	return f
}

func printIngestResult(res ingest.Result) {
	switch res.Outcome {
	case ingest.Created:
		r := res.Record
		fmt.Printf("Saved %q (%s)\n", r.Name, r.ID)
		fmt.Printf("  %s · %s · %s\n", r.Cuisine, r.PriceRange, r.Address)
		fmt.Printf("  %s [%s]\n", r.Coordinates, r.GeocodingTier)
	case ingest.DuplicateRejected:
		d := res.Duplicate
		fmt.Printf("%q is already saved as %q (%s), nothing stored\n", res.Record.Name, d.Name, d.ID)
	case ingest.NeedsManualEntry:
		fmt.Println("Could not read the screenshot; add it with `snapbite add --name ...`")
	}

	for _, a := range res.Geocoding.Attempts {
		if a.Err != nil {
			fmt.Printf("  geocoding %s: %v\n", a.Provider, a.Err)
		}
	}
}

func newIngestCmd() *cobra.Command {
	var manual manualFlags

	cmd := &cobra.Command{
		Use:   "ingest <image>",
		Short: "Save a restaurant from a screenshot",
		Long: `Reads a screenshot with the configured vision provider, geocodes its
address and saves it unless a restaurant with the same name, or any
restaurant within 100 meters, is already saved. Manual flags are used when
the screenshot cannot be read; tags and notes are always kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := vision.EncodeImageFile(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Ingest(cmd.Context(), ingest.Input{ImageBase64: image, Manual: manual.fields(cmd)})
			if err != nil {
				return err
			}

			printIngestResult(res)

			return nil
		},
	}
	manual.register(cmd)

	return cmd
}

func newAddCmd() *cobra.Command {
	var manual manualFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a restaurant entered by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields := manual.fields(cmd)
			if fields == nil {
				return errors.New("nothing to add: pass at least --name")
			}

			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Ingest(cmd.Context(), ingest.Input{Manual: fields})
			if err != nil {
				return err
			}

			printIngestResult(res)

			return nil
		},
	}
	manual.register(cmd)
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func findImages(dir string) ([]string, error) {
	var images []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path))) {
			images = append(images, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	slices.Sort(images)

	return images, nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Save every screenshot found in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := findImages(args[0])
			if err != nil {
				return err
			}

			if len(images) == 0 {
				log.Warn().Str("dir", args[0]).Msg("no images found")

				return nil
			}

			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			var bar *progressbar.ProgressBar
			if isatty.IsTerminal(os.Stderr.Fd()) {
				bar = progressbar.NewOptions(len(images),
					progressbar.OptionSetDescription("importing"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			counts := map[ingest.Outcome]int{}
			var manual []string
			var failed int

			for _, path := range images {
				if cmd.Context().Err() != nil {
					break
				}

				res, err := importImage(cmd, a, path)
				if err != nil {
					log.Error().Err(err).Str("file", path).Msg("import failed")
					failed++
				} else {
					counts[res.Outcome]++
					if res.Outcome == ingest.NeedsManualEntry {
						manual = append(manual, path)
					}
				}

				if bar != nil {
					_ = bar.Add(1)
				}
			}

			printImportSummary(os.Stdout, counts, failed)

			for _, path := range manual {
				fmt.Printf("needs manual entry: %s\n", path)
			}

			return cmd.Context().Err()
		},
	}
}

func printImportSummary(w io.Writer, counts map[ingest.Outcome]int, failed int) {
	a, b := strings.Repeat("─", 20), strings.Repeat("─", 8)
	fmt.Fprintf(w, "╭─%-20s─┬─%8s─╮\n", a, b)
	for _, o := range []ingest.Outcome{ingest.Created, ingest.DuplicateRejected, ingest.NeedsManualEntry} {
		fmt.Fprintf(w, "│ %-20s │ %8s │\n", o, textutils.FormatInt(int64(counts[o])))
	}
	fmt.Fprintf(w, "│ %-20s │ %8s │\n", "failed", textutils.FormatInt(int64(failed)))
	fmt.Fprintf(w, "╰─%-20s─┴─%8s─╯\n", a, b)
}

func importImage(cmd *cobra.Command, a *app, path string) (ingest.Result, error) {
	image, err := vision.EncodeImageFile(path)
	if err != nil {
		return ingest.Result{}, err
	}

	res, err := a.pipeline.Ingest(cmd.Context(), ingest.Input{ImageBase64: image})
	if err != nil {
		return res, err
	}

	log.Info().Str("file", path).Str("outcome", res.Outcome.String()).Msg("imported")

	return res, nil
}

func init() {
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newImportCmd())
}
