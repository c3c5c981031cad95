package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/catalog"
)

var providersType string

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show provider routing per container",
	RunE:  runProviders,
}

func init() {
	providersCmd.Flags().StringVar(&providersType, "type", "", "only show this container type or alias")
}

func runProviders(cmd *cobra.Command, _ []string) error {
	var container string
	if providersType != "" {
		c, ok := catalog.ResolveContainer(providersType)
		if !ok {
			return fmt.Errorf("unknown container type %q", providersType)
		}
		container = c
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONTAINER\tMODE\tPRIORITY\tPROVIDER\tACTIVE\tNOTE")
	for _, s := range a.router.Status() {
		if container != "" && s.Container != container {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\t%s\n", s.Container, s.Mode, s.Priority, s.Name, s.Active(), statusNote(s))
	}
	return w.Flush()
}

func statusNote(s catalog.ProviderStatus) string {
	switch {
	case !s.Registered:
		return "unknown adapter"
	case !s.Enabled:
		return "disabled in config"
	case s.EnvDisabled:
		return "disabled by environment"
	case !s.Configured:
		return "missing credentials"
	case s.Breaker != "closed":
		return "circuit " + s.Breaker
	default:
		return ""
	}
}
