// Package main provides the genai CLI, which runs generation tasks through
// the cache, circuit breaker, retry and validation pipeline.
//
// Usage:
//
//	genai generate --task eli5 --task tldr --context-file snippet.yaml
//	genai config
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "genai",
		Short:         "Resilient generative-AI task runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newGenerateCmd(),
		newConfigCmd(),
	)
	return root
}
