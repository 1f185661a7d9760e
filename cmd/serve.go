package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/lifescore/internal/server"
	"github.com/sw33tLie/lifescore/internal/utils"
	"github.com/sw33tLie/lifescore/pkg/scoring"
)

func (a *app) tokens() server.TokenService {
	return server.TokenService{
		Secret:   []byte(a.Settings.Server.JWTSecret),
		Issuer:   "lifescore",
		Duration: a.Settings.Server.TokenTTL,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lifescore HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Settings.Server.JWTSecret == "" {
			return fmt.Errorf("server.jwt_secret must be set before serving the API")
		}
		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = a.Settings.Server.Listen
		}

		details, err := a.detailService()
		if err != nil {
			return err
		}
		srv := &server.Server{
			DB:      a.DB,
			Details: details,
			Engine:  scoring.NewEngine(a.Settings.Scoring),
			Matcher: a.matcher(),
			Syncer:  &syncRunner{app: a},
			Tokens:  a.tokens(),
			Log:     utils.Log,
		}
		return srv.Start(listen)
	},
}

// tokenCmd issues a bearer token for the API.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userFlag(cmd)
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tok, exp, err := a.tokens().Sign(user)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(map[string]interface{}{"token": tok, "expires_at": exp})
		}
		fmt.Println(tok)
		utils.Log.Infof("Token expires %s", formatWhen(exp))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default from server.listen)")

	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringP("user", "u", "", "User id")
}
