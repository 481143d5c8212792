package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertsgarde/transformerscope/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a default config file to the --config path (default: ./tscope.yaml).
An existing file is left untouched.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	written, err := config.InitConfig(configPath)
	if err != nil {
		return err
	}
	if !written {
		fmt.Printf("Config already exists at: %s\n", configPath)
		return nil
	}
	fmt.Printf("Config initialized at: %s\n", configPath)
	fmt.Println("Edit this file to configure the server, site and rendering.")
	return nil
}
