package commands

import (
	"bookmark-extract/lib/serviceutil"
	"bookmark-extract/services/keychain"

	"github.com/spf13/cobra"
)

var loginKeychain *string
var logoutKeychain *string

func init() {
	loginKeychain = loginCmd.Flags().String("keychain", "", "The keychain database to store credentials in.")
	logoutKeychain = logoutCmd.Flags().String("keychain", "", "The keychain database to remove credentials from.")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func keychainPath(cfg Config) string {
	if cfg.Keychain != "" {
		return cfg.Keychain
	}
	return "keychain.db"
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Stores credentials for an account in the local keychain.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		chain, err := keychain.Open(keychainPath(Config{Keychain: *loginKeychain}))
		if err != nil {
			serviceutil.Fatal("failed to open keychain", err)
		}
		defer chain.Close()

		password := promptLine("password: ")
		err = chain.Set(cmd.Context(), keychain.Credential{
			Username: args[0],
			Password: password,
		})
		if err != nil {
			serviceutil.Fatal("failed to store credentials", err)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Removes an account's credentials from the local keychain.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		chain, err := keychain.Open(keychainPath(Config{Keychain: *logoutKeychain}))
		if err != nil {
			serviceutil.Fatal("failed to open keychain", err)
		}
		defer chain.Close()

		err = chain.Delete(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to remove credentials", err)
		}
	},
}
