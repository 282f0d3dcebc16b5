// Command rewardsfarm runs the daily searches and bonus tasks for every
// account in the accounts file.
//
// Usage:
//
//	rewardsfarm                          # run with config.yaml
//	rewardsfarm --searchtype mobile -v   # mobile only, visible browser
//	rewardsfarm history --limit 20       # recent passes
//	rewardsfarm cleanup                  # kill leftover Chrome
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
