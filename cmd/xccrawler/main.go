package main

import (
	"context"
	"os"

	"github.com/JakeFAU/xc-results-crawler/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
