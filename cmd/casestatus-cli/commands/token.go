package commands

import (
	"database/sql"
	"ecourts-backend/internal/chrono"
	"ecourts-backend/lib/serviceutil"
	"ecourts-backend/lib/sqliteutil"
	"ecourts-backend/services/auth"
	"ecourts-backend/services/auth/db"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	tokenDb   *string
	tokenName *string
)

func init() {
	tokenDb = tokenCmd.PersistentFlags().String("db", "casestatus.db", "The database tokens are kept in.")
	tokenName = tokenIssueCmd.Flags().String("name", "", "A note on what the token is for.")

	tokenCmd.AddCommand(tokenIssueCmd, tokenRevokeCmd, tokenListCmd)
	rootCmd.AddCommand(tokenCmd)
}

func openTokens() (*sql.DB, auth.Service) {
	database, err := sqliteutil.Config{File: *tokenDb}.OpenDB(db.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open db", err)
	}
	return database, auth.NewService(database, chrono.NewStandardTime())
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manages the api tokens principals authenticate with.",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <principal> [--name <note>]",
	Short: "Issues a new token for a principal and prints it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		database, service := openTokens()
		defer database.Close()

		token, err := service.IssueToken(cmd.Context(), args[0], *tokenName)
		if err != nil {
			serviceutil.Fatal("failed to issue token", err)
		}
		fmt.Println(token)
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <token>",
	Short: "Revokes a token, requests made with it are rejected afterwards.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		database, service := openTokens()
		defer database.Close()

		revoked, err := service.RevokeToken(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to revoke token", err)
		}
		if !revoked {
			fmt.Println("no such active token")
			return
		}
		fmt.Println("revoked")
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list <principal>",
	Short: "Lists the tokens issued to a principal.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		database, service := openTokens()
		defer database.Close()

		tokens, err := service.ListTokens(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to list tokens", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Token", "Name", "Created", "Revoked"})
		for _, token := range tokens {
			revoked := ""
			if token.RevokedAt.Valid {
				revoked = time.Unix(token.RevokedAt.Int64, 0).Format(time.ANSIC)
			}
			t.AppendRow(table.Row{
				token.Token,
				token.Name,
				time.Unix(token.CreatedAt, 0).Format(time.ANSIC),
				revoked,
			})
		}
		t.Render()
	},
}
