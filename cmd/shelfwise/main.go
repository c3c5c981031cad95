// shelfwise looks up collectables across upstream catalog providers.
//
// Usage:
//
//	shelfwise serve [--config=<path>]
//	shelfwise lookup --type=<container> --title=<title> [--year=N] [--mode=fallback|merge] [--limit=N] [--store]
//	shelfwise providers [--type=<container>]
//	shelfwise discover <provider> [--list=<name>] [--year=N] [--month=N]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
