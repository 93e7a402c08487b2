package main

import (
	"fmt"

	"github.com/sitekeep/adminauth/internal/utils"

	"github.com/traefik/paerser/cli"
)

func secretCmd() *cli.Command {
	return &cli.Command{
		Name:          "secret",
		Description:   "Generate a random server secret.",
		Configuration: nil,
		Resources:     nil,
		Run: func(_ []string) error {
			secret, err := utils.GenerateToken()

			if err != nil {
				return err
			}

			fmt.Println(secret)
			return nil
		},
	}
}
