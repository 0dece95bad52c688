package main

import (
	"fmt"
	"os"
)

// @title Loan Query API
// @version 1.0.0
// @description Query approval workflow and per-query chat for loan operations dashboards.
// @BasePath /api/v1
// @schemes http

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
