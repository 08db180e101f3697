package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pyclean:", err)
		os.Exit(2)
	}
	os.Exit(exitCode)
}
