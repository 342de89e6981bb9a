// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/snapbite/snapbite/geocoding"
	"github.com/snapbite/snapbite/restaurant"
	"github.com/snapbite/snapbite/spatial"
	"github.com/spf13/cobra"
)

func newGeocodeCmd() *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "geocode <address>",
		Short: "Resolve an address the way ingest does",
		Long: `Resolves an address through the cache, Google Maps, Nominatim and the
default coordinate, in that order, and shows every attempt. With --reverse
the arguments are a latitude and a longitude and Nominatim returns an
address.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if reverse {
				c, err := parsePosition(args)
				if err != nil {
					return err
				}

				fmt.Println(a.free.Reverse(cmd.Context(), c))

				return nil
			}

			res := a.resolver.Resolve(cmd.Context(), strings.Join(args, " "))

			fmt.Printf("%s [%s via %s]\n", res.Coordinates, res.Tier, res.Provider)
			if res.DisplayName != "" {
				fmt.Println(res.DisplayName)
			}

			for _, attempt := range res.Attempts {
				status := "ok"
				if attempt.Err != nil {
					status = attempt.Err.Error()
				}

				fmt.Printf("  %-10s %-10s %s\n", attempt.Provider, geocoding.Kind(attempt.Err), status)
			}

			return nil
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Look up the address of <lat> <lng>")

	return cmd
}

func parsePosition(args []string) (spatial.Coordinates, error) {
	if len(args) != 2 {
		return spatial.Coordinates{}, fmt.Errorf("expected <lat> <lng>, got %d arguments", len(args))
	}

	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return spatial.Coordinates{}, fmt.Errorf("invalid latitude %q: %w", args[0], err)
	}

	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return spatial.Coordinates{}, fmt.Errorf("invalid longitude %q: %w", args[1], err)
	}

	c := spatial.Coordinates{Latitude: lat, Longitude: lng}

	return c, c.Validate()
}

func newRegeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regeocode",
		Short: "Retry geocoding for restaurants placed at the default coordinate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := restaurant.NewRegeocoder(a.repo, a.resolver).Run(cmd.Context())
			fmt.Printf("%d restaurants updated\n", n)

			return err
		},
	}
}

func init() {
	rootCmd.AddCommand(newGeocodeCmd())
	rootCmd.AddCommand(newRegeocodeCmd())
}
