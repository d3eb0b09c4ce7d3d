package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported media types",
	RunE:  runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	pipe, _, closer, err := buildPipeline()
	if err != nil {
		return err
	}
	defer closer()

	for _, mt := range pipe.Registry().Types() {
		fmt.Println(mt)
	}
	return nil
}
