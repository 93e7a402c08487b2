package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sitekeep/adminauth/internal/utils"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/charmbracelet/huh"
	"github.com/traefik/paerser/cli"
)

type HashConfig struct {
	Interactive bool   `description:"Hash a password interactively."`
	Docker      bool   `description:"Format output for docker."`
	Password    string `description:"Password."`
}

func NewHashConfig() *HashConfig {
	return &HashConfig{
		Interactive: false,
		Docker:      false,
		Password:    "",
	}
}

func hashCmd() *cli.Command {
	tCfg := NewHashConfig()

	loaders := []cli.ResourceLoader{
		&cli.FlagLoader{},
	}

	return &cli.Command{
		Name:          "hash",
		Description:   "Hash the admin password",
		Configuration: tCfg,
		Resources:     loaders,
		Run: func(_ []string) error {
			tlog.NewSimpleLogger().Init()

			if tCfg.Interactive {
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&tCfg.Password).Validate((func(s string) error {
							if s == "" {
								return errors.New("password cannot be empty")
							}
							return nil
						})),
						huh.NewSelect[bool]().Title("Format the output for Docker?").Options(huh.NewOption("Yes", true), huh.NewOption("No", false)).Value(&tCfg.Docker),
					),
				)

				var baseTheme *huh.Theme = huh.ThemeBase()

				err := form.WithTheme(baseTheme).Run()

				if err != nil {
					return fmt.Errorf("failed to run interactive prompt: %w", err)
				}
			}

			hash, err := utils.HashPassword(tCfg.Password)

			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			// If docker format is enabled, escape the dollar sign
			if tCfg.Docker {
				hash = strings.ReplaceAll(hash, "$", "$$")
			}

			tlog.App.Info().Str("hash", hash).Msg("Password hashed, set it as auth.passwordhash")

			return nil
		},
	}
}
