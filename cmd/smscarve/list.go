package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ftl/sms-carver/carve"
	"github.com/ftl/sms-carver/filter"
)

var parsersCmd = &cobra.Command{
	Use:   "parsers",
	Short: "List the available parsers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		options, err := cfg.Carve.TextOptions()
		if err != nil {
			return err
		}
		return listParsers(cmd.OutOrStdout(), carve.DefaultRegistry(options))
	},
}

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "List the available filters, including the configured filter profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := filter.DefaultRegistry()
		if cfg.Carve.Profiles != "" {
			profiles, err := filter.LoadProfiles(cfg.Carve.Profiles)
			if err != nil {
				return err
			}
			for _, profile := range profiles {
				registry.Add(profile)
			}
		}
		return listFilters(cmd.OutOrStdout(), registry)
	},
}

func init() {
	filtersCmd.Flags().String("profiles", "", "YAML file with additional filter profiles")
	bind("carve.profiles", filtersCmd.Flags(), "profiles")

	rootCmd.AddCommand(parsersCmd)
	rootCmd.AddCommand(filtersCmd)
}

func listParsers(w io.Writer, registry *carve.Registry) error {
	data := pterm.TableData{{"Index", "Name", "Type", "Steps"}}
	for i, parser := range registry.Parsers() {
		data = append(data, []string{strconv.Itoa(i), parser.Name(), parser.Kind().String(), strings.Join(parser.Steps(), ", ")})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

func listFilters(w io.Writer, registry *filter.Registry) error {
	data := pterm.TableData{{"Index", "Name"}}
	for i, f := range registry.Filters() {
		data = append(data, []string{strconv.Itoa(i), f.Name()})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}
