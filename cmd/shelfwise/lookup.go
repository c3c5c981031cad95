package main

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/catalog"
	"github.com/shelfwise/shelfwise/internal/collectable"
	"github.com/shelfwise/shelfwise/internal/store"
)

var lookupFlags struct {
	containerType string
	title         string
	year          int
	format        string
	mode          string
	limit         int
	ids           []string
	store         bool
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up a title across the configured providers",
	Example: `  shelfwise lookup --type movies --title "Alien" --year 1979
  shelfwise lookup --type novel --title "Dune" --mode merge --store
  shelfwise lookup --type books --title "Dune" --id isbn13:9780441013593 --limit 5`,
	RunE: runLookup,
}

func init() {
	f := lookupCmd.Flags()
	f.StringVar(&lookupFlags.containerType, "type", "", "container type or alias (books, novel, movies, dvd, tv, games, music, ...)")
	f.StringVar(&lookupFlags.title, "title", "", "title to look up")
	f.IntVar(&lookupFlags.year, "year", 0, "release year")
	f.StringVar(&lookupFlags.format, "format", "", "physical format, e.g. Blu-ray or Hardcover")
	f.StringVar(&lookupFlags.mode, "mode", "", "fallback or merge (default: container setting)")
	f.IntVar(&lookupFlags.limit, "limit", 0, "return up to N matches instead of the best one")
	f.StringSliceVar(&lookupFlags.ids, "id", nil, "identifier as key:value, repeatable")
	f.BoolVar(&lookupFlags.store, "store", false, "persist the match in the collectable store")
	_ = lookupCmd.MarkFlagRequired("type")
	_ = lookupCmd.MarkFlagRequired("title")
}

func runLookup(cmd *cobra.Command, _ []string) error {
	if _, ok := catalog.ResolveContainer(lookupFlags.containerType); !ok {
		return fmt.Errorf("unknown container type %q", lookupFlags.containerType)
	}

	criteria := collectable.SearchCriteria{
		Title:  lookupFlags.title,
		Year:   lookupFlags.year,
		Format: lookupFlags.format,
	}
	for _, raw := range lookupFlags.ids {
		key, value, ok := strings.Cut(raw, ":")
		if !ok || key == "" || value == "" {
			return fmt.Errorf("invalid --id %q, want key:value", raw)
		}
		if criteria.Identifiers == nil {
			criteria.Identifiers = make(map[string]string)
		}
		criteria.Identifiers[key] = value
	}

	var opts catalog.LookupOptions
	if lookupFlags.mode != "" {
		mode, err := catalog.ParseMode(lookupFlags.mode)
		if err != nil {
			return err
		}
		opts.Mode = mode
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	var results []collectable.Collectable
	if lookupFlags.limit > 0 {
		results, err = a.router.LookupMany(ctx, criteria, lookupFlags.containerType, lookupFlags.limit, opts)
	} else {
		var result *collectable.Collectable
		result, err = a.router.Lookup(ctx, criteria, lookupFlags.containerType, opts)
		if result != nil {
			results = []collectable.Collectable{*result}
		}
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no match found for %q", criteria.Title)
	}

	if lookupFlags.store {
		db, err := store.Open(a.cfg.Store.Path, a.logger())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		for _, c := range results {
			id, err := db.Store(ctx, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "stored %q as %s\n", c.Title, id)
		}
	}

	var out any = results
	if lookupFlags.limit <= 0 {
		out = results[0]
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
