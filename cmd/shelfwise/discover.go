package main

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
)

var discoverFlags struct {
	list  string
	year  int
	month int
}

var discoverCmd = &cobra.Command{
	Use:   "discover <provider>",
	Short: "Show a provider's discovery feed",
	Example: `  shelfwise discover nytbooks --list young-adult
  shelfwise discover bluray --year 2025 --month 3`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

func init() {
	f := discoverCmd.Flags()
	f.StringVar(&discoverFlags.list, "list", "", "list name for list-based feeds")
	f.IntVar(&discoverFlags.year, "year", 0, "calendar year (default: current)")
	f.IntVar(&discoverFlags.month, "month", 0, "calendar month 1-12 (default: current)")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	q, err := discoverQuery(discoverFlags.list, discoverFlags.year, discoverFlags.month)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.router.Discover(cmd.Context(), args[0], q)
	if err != nil {
		return fmt.Errorf("discover %s: %w", args[0], err)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func discoverQuery(list string, year, month int) (provider.DiscoverQuery, error) {
	if year < 0 {
		return provider.DiscoverQuery{}, fmt.Errorf("invalid --year %d", year)
	}
	if month < 0 || month > 12 {
		return provider.DiscoverQuery{}, fmt.Errorf("invalid --month %d, want 1-12", month)
	}
	return provider.DiscoverQuery{List: list, Year: year, Month: time.Month(month)}, nil
}
