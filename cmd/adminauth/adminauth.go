package main

import (
	"fmt"

	"github.com/sitekeep/adminauth/internal/bootstrap"
	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/utils/loaders"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/rs/zerolog/log"
	"github.com/traefik/paerser/cli"
)

func main() {
	tConfig := config.NewDefaultConfiguration()

	loaders := []cli.ResourceLoader{
		&loaders.FileLoader{},
		&loaders.FlagLoader{},
		&loaders.EnvLoader{},
	}

	cmdAdminauth := &cli.Command{
		Name:          "adminauth",
		Description:   "Login gate and brute-force protection for a single admin panel.",
		Configuration: tConfig,
		Resources:     loaders,
		Run: func(_ []string) error {
			return runCmd(*tConfig)
		},
	}

	err := cmdAdminauth.AddCommand(versionCmd())

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add version command")
	}

	err = cmdAdminauth.AddCommand(hashCmd())

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add hash command")
	}

	err = cmdAdminauth.AddCommand(verifyCmd())

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add verify command")
	}

	err = cmdAdminauth.AddCommand(secretCmd())

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add secret command")
	}

	err = cmdAdminauth.AddCommand(healthcheckCmd())

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add healthcheck command")
	}

	err = cli.Execute(cmdAdminauth)

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func runCmd(cfg config.Config) error {
	tlog.NewLogger(cfg.Log).Init()

	tlog.App.Info().Str("version", config.Version).Msg("Starting adminauth")

	app := bootstrap.NewBootstrapApp(cfg)

	err := app.Run()

	if err != nil {
		return fmt.Errorf("failed to bootstrap app: %w", err)
	}

	return nil
}
