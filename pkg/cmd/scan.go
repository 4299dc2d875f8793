package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/prowl"
)

func scanCommand(settings **prowl.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run the enabled scanners against the configured target and collect findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *settings

			// a user abort must reach in-flight scanner processes
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry := makeRegistry()
			enabled, missing := registry.Resolve(s.EnabledAdapters())
			for _, name := range missing {
				log.Warn().Str("plugin", name).Msg("configured adapter is not registered")
			}
			if len(enabled) == 0 {
				return errors.New("no enabled adapters")
			}

			runner := prowl.NewRunner(enabled, s.Workdir, s.ScanTimeout.Duration)
			manifest, err := runner.Run(ctx, s.Target())
			if err != nil {
				return errors.Wrap(err, "scan phase failed")
			}

			repo := prowl.NewFindingRepo(s.Home)
			collector := prowl.NewCollector(registry, repo, s.PurgeOnStart)
			total, err := collector.Collect(ctx, manifest)
			if err != nil {
				return errors.Wrap(err, "collect phase failed")
			}

			log.Info().
				Int("findings", total).
				Int("skipped_scans", len(manifest.Skipped)).
				Msg("run complete")
			return nil
		},
	}
}
