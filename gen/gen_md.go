package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/sitekeep/adminauth/internal/config"
)

const flagRoot = "adminauth."

type MarkdownEntry struct {
	Env         string
	Flag        string
	Description string
	Default     string
}

func generateMarkdown() {
	cfg := config.NewDefaultConfiguration()
	entries := make([]MarkdownEntry, 0)

	root := reflect.TypeOf(cfg).Elem()
	rootValue := reflect.ValueOf(cfg).Elem()

	walkAndBuild(root, rootValue, flagRoot, &entries, buildMdEntry, buildMdChildPath)
	compiled := compileMd(entries)

	err := os.Remove("config.gen.md")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to remove config reference file", "error", err)
		os.Exit(1)
	}

	err = os.WriteFile("config.gen.md", compiled, 0644)
	if err != nil {
		slog.Error("failed to write config reference file", "error", err)
		os.Exit(1)
	}
}

func buildMdEntry(child reflect.StructField, childValue reflect.Value, parentPath string, entries *[]MarkdownEntry) {
	section := strings.TrimPrefix(parentPath, flagRoot)
	name := strings.ToLower(child.Name)

	*entries = append(*entries, MarkdownEntry{
		Env:         config.DefaultNamePrefix + strings.ToUpper(strings.ReplaceAll(section, ".", "_")) + strings.ToUpper(child.Name),
		Flag:        fmt.Sprintf("--%s%s", section, name),
		Description: child.Tag.Get("description"),
		Default:     fmt.Sprintf("`%s`", defaultString(childValue)),
	})
}

func buildMdChildPath(parent string, child string) string {
	return parent + strings.ToLower(child) + "."
}

func compileMd(entries []MarkdownEntry) []byte {
	buffer := bytes.Buffer{}

	buffer.WriteString("# adminauth configuration reference\n\n")
	buffer.WriteString("| Environment | Flag | Description | Default |\n")
	buffer.WriteString("| - | - | - | - |\n")

	previousSection := ""

	for _, entry := range entries {
		name := strings.TrimPrefix(entry.Env, config.DefaultNamePrefix)
		if strings.Contains(name, "_") {
			section := strings.Split(name, "_")[0]
			if section != previousSection {
				buffer.WriteString("\n## " + strings.ToLower(section) + "\n\n")
				buffer.WriteString("| Environment | Flag | Description | Default |\n")
				buffer.WriteString("| - | - | - | - |\n")
				previousSection = section
			}
		}
		fmt.Fprintf(&buffer, "| `%s` | `%s` | %s | %s |\n", entry.Env, entry.Flag, entry.Description, entry.Default)
	}

	return buffer.Bytes()
}
