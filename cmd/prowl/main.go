package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/prowl/pkg/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Error().Err(err).Msg("prowl failed")
		os.Exit(1)
	}
}
