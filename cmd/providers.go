package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agenticmail/connectd/internal/providers"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the built-in OAuth provider catalog",
		Long: `List the OAuth providers connectd can broker connections to, along with
their default scopes and whether they support PKCE. Client credentials for
each provider are read from CONNECT_<PROVIDER>_CLIENT_ID and
CONNECT_<PROVIDER>_CLIENT_SECRET environment variables at flow time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := providers.Default()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPKCE\tDEFAULT SCOPES")
			for _, d := range registry.List() {
				pkce := "no"
				if d.SupportsPKCE {
					pkce = "yes"
				}
				scopes := strings.Join(d.DefaultScopes, ",")
				if scopes == "" {
					scopes = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, pkce, scopes)
			}
			return w.Flush()
		},
	}
}
