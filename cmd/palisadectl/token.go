package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/palisadeproject/palisade/pkg/clock"
	"github.com/palisadeproject/palisade/pkg/token"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token utilities",
	}
	cmd.AddCommand(tokenInspectCmd())
	return cmd
}

func tokenInspectCmd() *cobra.Command {
	var keyEnv, algorithm, issuer string

	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a bearer token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := os.Getenv(keyEnv)
			if key == "" {
				return fmt.Errorf("environment variable %s is not set", keyEnv)
			}

			var opts []token.Option
			if issuer != "" {
				opts = append(opts, token.WithIssuer(issuer))
			}
			verifier, err := token.NewVerifier([]byte(key), algorithm, clock.Real(), opts...)
			if err != nil {
				return err
			}

			claims, err := verifier.Verify(args[0])
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}

			if outputFormat == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"subject":   claims.Subject,
					"userKey":   claims.UserKey,
					"email":     claims.Email,
					"roles":     claims.Roles,
					"expiresAt": claims.ExpiresAt.Format(time.RFC3339),
					"issuer":    claims.Issuer,
				})
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Append([]string{"Claim", "Value"})
			table.Append([]string{"subject", claims.Subject})
			table.Append([]string{"user key", claims.UserKey})
			table.Append([]string{"email", claims.Email})
			table.Append([]string{"roles", strings.Join(claims.Roles, ", ")})
			table.Append([]string{"expires", claims.ExpiresAt.Format(time.RFC3339)})
			if claims.Issuer != "" {
				table.Append([]string{"issuer", claims.Issuer})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&keyEnv, "key-env", "PALISADE_BEARER_KEY", "Environment variable holding the signing key")
	cmd.Flags().StringVar(&algorithm, "alg", "HS256", "Expected signing algorithm")
	cmd.Flags().StringVar(&issuer, "issuer", "", "Required issuer, if any")
	return cmd
}
