package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFileFlag string
	rootCmd     = &cobra.Command{
		Use:           "contactsctl",
		Short:         "Inspect and maintain the remote contacts database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// envFiles lists the dotenv files to read. An explicit flag wins; otherwise
// ./.env and then the per-user config file are tried.
func envFiles(flag string) []string {
	if flag != "" {
		return []string{flag}
	}
	return []string{".env", filepath.Join(xdg.ConfigHome, "contacts-service", "env")}
}

func loadEnv(flag string) error {
	for _, path := range envFiles(flag) {
		err := godotenv.Load(path)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, fs.ErrNotExist) && flag == "":
			continue
		default:
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", "", "dotenv file with CONTACTS_* settings")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadEnv(envFileFlag)
	}

	rootCmd.AddCommand(newListCmd(), newGetCmd(), newArchiveCmd(), newSchemaCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
