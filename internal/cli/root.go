// Copyright (c) 2025 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dnswalk.io/dnswalk/internal/resolver"
)

func RootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "dnswalk name...",
		Short: "dnswalk - resolve names by walking the DNS delegation hierarchy.",
		// Silence because we want to use our logger instead
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}

			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			collector, err := newCollector()
			if err != nil {
				return err
			}

			// names repeated on the command line are resolved once
			var names []string

			for _, name := range args {
				if !slices.Contains(names, name) {
					names = append(names, name)
				}
			}

			for _, name := range names {
				printRecordSet(cmd.OutOrStdout(), collector.Collect(cmd.Context(), name))
			}

			// a name without records prints nothing; the exit status
			// stays zero either way
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Increase output verbosity")
	cmd.PersistentFlags().BoolP("help", "h", false,
		"Help information about a command")

	cmd.AddCommand(serveCmd())

	cmd.InitDefaultHelpCmd()

	return cmd
}

func newCollector() (*resolver.Collector, error) {
	labelCache := resolver.NewLabelCache(resolver.RootServers())
	walker := resolver.NewWalker(labelCache)

	return resolver.NewCollector(walker, labelCache)
}

// printRecordSet writes one line per discovered record using the
// fixed templates, in CNAME, A, AAAA, MX order.
func printRecordSet(w io.Writer, set resolver.RecordSet) {
	for _, record := range set.CNAME {
		fmt.Fprintf(w, "%s is an alias for %s\n", record.Alias, record.Name)
	}

	for _, record := range set.A {
		fmt.Fprintf(w, "%s has address %s\n", record.Name, record.Address)
	}

	for _, record := range set.AAAA {
		fmt.Fprintf(w, "%s has IPv6 address %s\n", record.Name, record.Address)
	}

	for _, record := range set.MX {
		fmt.Fprintf(w, "%s mail is handled by %d %s\n", record.Name, record.Preference, record.Exchange)
	}
}
