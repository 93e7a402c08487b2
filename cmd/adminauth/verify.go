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

type VerifyConfig struct {
	Interactive bool   `description:"Verify a password interactively."`
	Hash        string `description:"Password hash."`
	Password    string `description:"Password."`
}

func NewVerifyConfig() *VerifyConfig {
	return &VerifyConfig{
		Interactive: false,
		Hash:        "",
		Password:    "",
	}
}

func verifyCmd() *cli.Command {
	tCfg := NewVerifyConfig()

	loaders := []cli.ResourceLoader{
		&cli.FlagLoader{},
	}

	return &cli.Command{
		Name:          "verify",
		Description:   "Verify a password against a hash.",
		Configuration: tCfg,
		Resources:     loaders,
		Run: func(_ []string) error {
			tlog.NewSimpleLogger().Init()

			if tCfg.Interactive {
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().Title("Hash").Value(&tCfg.Hash).Validate((func(s string) error {
							if s == "" {
								return errors.New("hash cannot be empty")
							}
							return nil
						})),
						huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&tCfg.Password).Validate((func(s string) error {
							if s == "" {
								return errors.New("password cannot be empty")
							}
							return nil
						})),
					),
				)

				var baseTheme *huh.Theme = huh.ThemeBase()

				err := form.WithTheme(baseTheme).Run()

				if err != nil {
					return fmt.Errorf("failed to run interactive prompt: %w", err)
				}
			}

			// Accept hashes copied from a docker compose file
			hash := strings.ReplaceAll(tCfg.Hash, "$$", "$")

			if !utils.CheckPassword(hash, tCfg.Password) {
				return errors.New("password is incorrect")
			}

			tlog.App.Info().Msg("Password verified")

			return nil
		},
	}
}
