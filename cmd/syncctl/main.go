// syncctl pushes ERP product and stock changes to the shop.
//
// Usage:
//
//	syncctl stock    [--dryrun] [--range 1h] [--force]
//	syncctl products [--dryrun] [--range 1h] [--force]
//	syncctl sale     --sku A1 --qty 2 [--dryrun]
//	syncctl resolve  A1 [--refresh]
//	syncctl history  [--sku A1] [--limit 20]
//	syncctl serve
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
