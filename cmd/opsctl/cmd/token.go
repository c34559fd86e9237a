package cmd

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/good-yellow-bee/opswatch/internal/api/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an API bearer token",
	Long: `Generate a signed bearer token for the API.

The signing secret is read from the OPSWATCH_JWT_SECRET environment
variable, or prompted for interactively so it never lands in shell
history. It must match the server's configured secret.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("OPSWATCH_JWT_SECRET")
		if secret == "" {
			fmt.Fprint(os.Stderr, "Signing secret: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
			secret = string(raw)
		}
		if secret == "" {
			return fmt.Errorf("signing secret is required")
		}

		service := auth.NewJWTService([]byte(secret), tokenTTL)
		token, err := service.GenerateToken(tokenSubject)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenGenerateCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "token subject (who the token is for)")
	tokenGenerateCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	tokenCmd.AddCommand(tokenGenerateCmd)
	rootCmd.AddCommand(tokenCmd)
}
