package main

import (
	"fmt"
	"os"

	"seasonfarm/services/keeper"
)

func main() {
	if err := keeper.Main(); err != nil {
		fmt.Fprintf(os.Stderr, "farm-keeper: %v\n", err)
		os.Exit(1)
	}
}
