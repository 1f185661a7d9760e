package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sw33tLie/lifescore/internal/utils"
	"github.com/sw33tLie/lifescore/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the canonical release catalog",
}

// catalogFile is the import format:
//
//	releases:
//	  - id: 1
//	    title: Chrono Trigger
//	    platform: snes
type catalogFile struct {
	Releases []catalog.Release `yaml:"releases"`
}

func parseCatalog(raw []byte) ([]catalog.Release, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("invalid catalog file: %w", err)
	}

	seen := make(map[int64]bool, len(f.Releases))
	out := make([]catalog.Release, 0, len(f.Releases))
	for i, r := range f.Releases {
		r.Title = strings.TrimSpace(r.Title)
		r.Platform = strings.ToLower(strings.TrimSpace(r.Platform))
		switch {
		case r.ID <= 0:
			return nil, fmt.Errorf("release #%d: id must be positive", i+1)
		case r.Title == "" || r.Platform == "":
			return nil, fmt.Errorf("release %d: title and platform are required", r.ID)
		case seen[r.ID]:
			return nil, fmt.Errorf("release %d appears twice", r.ID)
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out, nil
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Insert or update catalog releases from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		releases, err := parseCatalog(raw)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		lock, err := utils.NewDBLock(a.DBPath)
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer lock.Unlock()

		inserted, updated, err := a.DB.UpsertReleases(cmd.Context(), releases)
		if err != nil {
			return err
		}
		utils.Log.Infof("Catalog import: %d inserted, %d updated, %d unchanged", inserted, updated, len(releases)-inserted-updated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogImportCmd)
}
