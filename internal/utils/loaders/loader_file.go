package loaders

import (
	"os"
	"strings"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/traefik/paerser/cli"
	"github.com/traefik/paerser/file"
	"github.com/traefik/paerser/flag"
)

// paerser names the root element "traefik" regardless of the command name
const configFileKey = "traefik.configfile"

type FileLoader struct{}

func (f *FileLoader) Load(args []string, cmd *cli.Command) (bool, error) {
	flags, err := flag.Parse(args, cmd.Configuration)

	if err != nil {
		return false, err
	}

	path := ""

	for key, value := range flags {
		if strings.EqualFold(key, configFileKey) {
			path = value
			break
		}
	}

	if path == "" {
		path = os.Getenv(config.DefaultNamePrefix + "CONFIGFILE")
	}

	if path == "" {
		return false, nil
	}

	tlog.App.Debug().Str("path", path).Msg("Loading configuration file")

	err = file.Decode(path, cmd.Configuration)

	if err != nil {
		return false, err
	}

	return true, nil
}
