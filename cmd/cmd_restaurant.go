// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/snapbite/snapbite/geocoding"
	"github.com/snapbite/snapbite/restaurant"
	"github.com/snapbite/snapbite/utils/textutils"
	"github.com/spf13/cobra"
)

func withRepository(ctx context.Context, fn func(restaurant.Repository) error) error {
	db, repo, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(repo)
}

func visitedMark(r *restaurant.Record) string {
	if r.IsVisited {
		return "✓"
	}

	return ""
}

func printRecords(records []*restaurant.Record, distances []float64) {
	a, b, c, d, e := strings.Repeat("─", 36), strings.Repeat("─", 28), strings.Repeat("─", 16), strings.Repeat("─", 4), strings.Repeat("─", 8)
	fmt.Printf("╭─%-36s─┬─%-28s─┬─%-16s─┬─%-4s─┬─%8s─┬─%-1s─╮\n", a, b, c, d, e, "─")
	fmt.Printf("│ %-36s │ %-28s │ %-16s │ %-4s │ %8s │ %-1s │\n", "Id", "Name", "Cuisine", "$", "Tier", "V")
	fmt.Printf("├─%-36s─┼─%-28s─┼─%-16s─┼─%-4s─┼─%8s─┼─%-1s─┤\n", a, b, c, d, e, "─")

	for i, r := range records {
		last := string(r.GeocodingTier)
		if distances != nil {
			last = fmt.Sprintf("%.0fm", distances[i])
		}

		fmt.Printf("│ %-36s │ %-28.28s │ %-16.16s │ %-4s │ %8.8s │ %-1s │\n",
			r.ID, r.Name, r.Cuisine, r.PriceRange, last, visitedMark(r))
	}

	fmt.Printf("╰─%-36s─┴─%-28s─┴─%-16s─┴─%-4s─┴─%8s─┴─%-1s─╯\n", a, b, c, d, e, "─")
	fmt.Printf("%s restaurants\n", textutils.FormatInt(int64(len(records))))
}

func newListCmd() *cobra.Command {
	var tier string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved restaurants, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepository(cmd.Context(), func(repo restaurant.Repository) error {
				var records []*restaurant.Record
				var err error

				if tier != "" {
					records, err = repo.ListByTier(cmd.Context(), geocoding.Tier(tier))
				} else {
					records, err = repo.List(cmd.Context())
				}

				if err != nil {
					return err
				}

				printRecords(records, nil)

				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tier, "tier", "", "Only restaurants geocoded by tier: cached, primary, free, default or manual")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a restaurant as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd.Context(), func(repo restaurant.Repository) error {
				r, err := repo.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return writeJSON(os.Stdout, r)
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search by name, cuisine, address or tag",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd.Context(), func(repo restaurant.Repository) error {
				records, err := repo.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}

				printRecords(records, nil)

				return nil
			})
		},
	}
}

func newNearbyCmd() *cobra.Command {
	var position positionFlags
	var radiusKm float64

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List saved restaurants around a position, closest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			center, err := position.resolve(cmd)
			if err != nil {
				return err
			}

			return withRepository(cmd.Context(), func(repo restaurant.Repository) error {
				found, err := repo.Nearby(cmd.Context(), center, radiusKm*1000)
				if err != nil {
					return err
				}

				records := make([]*restaurant.Record, len(found))
				distances := make([]float64, len(found))

				for i, f := range found {
					records[i], distances[i] = f.Record, f.Distance
				}

				printRecords(records, distances)

				return nil
			})
		},
	}
	position.register(cmd)
	cmd.Flags().Float64Var(&radiusKm, "radius-km", 5, "Search radius in kilometers")

	return cmd
}

func newAlertsCmd() *cobra.Command {
	var position positionFlags

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show saved restaurants within 500 meters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			center, err := position.resolve(cmd)
			if err != nil {
				return err
			}

			return withRepository(cmd.Context(), func(repo restaurant.Repository) error {
				found, err := repo.Nearby(cmd.Context(), center, restaurant.ProximityAlertRadiusMeters)
				if err != nil {
					return err
				}

				records := make([]*restaurant.Record, len(found))
				for i, f := range found {
					records[i] = f.Record
				}

				for _, alert := range restaurant.ProximityAlerts(center, records) {
					fmt.Println(alert.Message)
				}

				return nil
			})
		},
	}
	position.register(cmd)

	return cmd
}

func newPatchCmd(use, short string, positional cobra.PositionalArgs, patch func(args []string) restaurant.Patch) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  positional,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd.Context(), func(repo restaurant.Repository) error {
				r, err := repo.Update(cmd.Context(), args[0], patch(args))
				if err != nil {
					return err
				}

				fmt.Printf("Updated %q (%s)\n", r.Name, r.ID)

				return nil
			})
		},
	}
}

func visitedPatch(visited bool) func([]string) restaurant.Patch {
	return func([]string) restaurant.Patch {
		return restaurant.Patch{IsVisited: &visited}
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a restaurant permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd.Context(), func(repo restaurant.Repository) error {
				if err := repo.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}

				fmt.Printf("Deleted %s\n", args[0])

				return nil
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func newExportCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every saved restaurant as GeoJSON or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "geojson" && format != "json" {
				return fmt.Errorf("unknown format %q, expected geojson or json", format)
			}

			var w io.Writer = os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output) // #nosec G304 - path is provided by the user
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()

				w = f
			}

			return withRepository(cmd.Context(), func(repo restaurant.Repository) error {
				records, err := repo.List(cmd.Context())
				if err != nil {
					return err
				}

				if format == "geojson" {
					return writeJSON(w, restaurant.ToFeatureCollection(records))
				}

				return writeJSON(w, records)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "geojson", "Output format: geojson or json")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file")

	return cmd
}

func init() {
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newNearbyCmd())
	rootCmd.AddCommand(newAlertsCmd())
	rootCmd.AddCommand(newPatchCmd("visit <id>", "Mark a restaurant as visited", cobra.ExactArgs(1), visitedPatch(true)))
	rootCmd.AddCommand(newPatchCmd("unvisit <id>", "Mark a restaurant as not visited", cobra.ExactArgs(1), visitedPatch(false)))
	rootCmd.AddCommand(newPatchCmd("note <id> <text>", "Replace the notes of a restaurant", cobra.ExactArgs(2), func(args []string) restaurant.Patch {
		return restaurant.Patch{Notes: &args[1]}
	}))
	rootCmd.AddCommand(newPatchCmd("tag <id> <tag>...", "Replace the tags of a restaurant", cobra.MinimumNArgs(2), func(args []string) restaurant.Patch {
		tags := args[1:]

		return restaurant.Patch{Tags: &tags}
	}))
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newExportCmd())
}
