package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/prowl"
	"github.com/prowl/pkg/adapters/dig"
	"github.com/prowl/pkg/adapters/nikto"
	"github.com/prowl/pkg/adapters/nmap"
	"github.com/prowl/pkg/adapters/nuclei"
)

type Flags struct {
	Config  string
	Verbose bool
}

// builds the registry of every compiled-in adapter
func makeRegistry() *prowl.AdapterRegistry {
	registry := prowl.NewAdapterRegistry()
	registry.Register(nmap.New())
	registry.Register(nikto.New())
	registry.Register(dig.New())
	registry.Register(nuclei.New())
	return registry
}

func Run() error {
	var (
		f        Flags
		settings *prowl.Settings
	)

	com := &cobra.Command{
		Use:   "prowl",
		Short: "Security scan orchestration and reporting",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if f.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			s, err := prowl.LoadSettings(f.Config)
			settings = s
			return err
		},
	}

	fl := com.PersistentFlags()

	cfgFlags := pflag.NewFlagSet("Configuration", pflag.ExitOnError)
	cfgFlags.StringVar(&f.Config, "config", "prowl.yaml", "Path to configuration file")
	cfgFlags.BoolVarP(&f.Verbose, "verbose", "v", false, "Enable debug logging")
	fl.AddFlagSet(cfgFlags)

	com.AddCommand(
		scanCommand(&settings),
		reportCommand(&settings),
	)

	return com.Execute()
}
