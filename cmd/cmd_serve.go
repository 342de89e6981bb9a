// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"github.com/snapbite/snapbite/api"
	"github.com/snapbite/snapbite/restaurant"
	"github.com/snapbite/snapbite/vision"
	"github.com/spf13/cobra"
)

const regeocodeTimeout = 10 * time.Minute

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler := cron.New()
			if spec := cfg.Server.RegeocodeSchedule; spec != "" {
				if _, err := restaurant.NewRegeocoder(a.repo, a.resolver).Schedule(cmd.Context(), scheduler, spec, regeocodeTimeout); err != nil {
					return err
				}
			}

			scheduler.Start()
			defer func() { <-scheduler.Stop().Done() }()

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           api.NewServer(a.repo, a.pipeline, locator()).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", srv.Addr).Msg("serving snapbite api")
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-cmd.Context().Done():
			}

			log.Info().Msg("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from [server] addr)")

	return cmd
}

// pinger is implemented by vision backends that can check credentials
// without sending an image.
type pinger interface {
	Ping(ctx context.Context) error
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the vision provider accepts the configured key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			analyzer, err := newAnalyzer(cmd.Context())
			if err != nil {
				return err
			}

			if analyzer == nil {
				return errors.New("no vision provider configured")
			}

			p, ok := analyzer.(pinger)
			if !ok {
				return fmt.Errorf("%s does not support ping", analyzer.Name())
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), vision.DefaultTimeout)
			defer cancel()

			if err := p.Ping(ctx); err != nil {
				return err
			}

			fmt.Printf("%s: ok\n", analyzer.Name())

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPingCmd())
}
