package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/prowl"
	"github.com/prowl/pkg/render"
)

func reportCommand(settings **prowl.Settings) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render reports from the stored findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *settings

			registry := makeRegistry()
			repo := prowl.NewFindingRepo(s.Home)
			aggregator := prowl.NewAggregator(registry, repo)

			target := s.Target()
			var targets []string
			for _, kind := range target.Kinds() {
				targets = append(targets, target.Ident(kind))
			}

			report, err := aggregator.Aggregate(targets...)
			if err != nil {
				return errors.Wrap(err, "failed to aggregate findings")
			}

			if s.Report.ClearReports {
				render.ClearReports(s.Report.OutputDir)
			}

			formats := s.Report.Formats
			if format != "" {
				formats = []string{format}
			}

			opts := render.Options{
				OutputDir: s.Report.OutputDir,
				Theme:     s.Report.Theme,
				Timestamp: time.Now(),
			}
			for _, f := range formats {
				renderer, err := render.ForFormat(f, opts)
				if err != nil {
					return err
				}
				if err := renderer.Render(report); err != nil {
					return errors.Wrapf(err, "failed to render %s report", f)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Render a single format instead of the configured set")
	return cmd
}
