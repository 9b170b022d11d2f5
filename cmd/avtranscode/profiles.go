package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zsiec/avtranscode/internal/profile"
)

func newProfilesCommand(a *app) *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "profiles [NAME]",
		Short: "List the available profiles or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				p, err := a.loader.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Println(p.String())
				return nil
			}

			list := a.loader.List()
			if typ != "" {
				list = a.loader.ListByType(typ)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tDESCRIPTION")
			for _, p := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name(), p.Type(), p.LongName())
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "", "Only list profiles of this type (video, audio or format)")
	_ = cmd.RegisterFlagCompletionFunc("type", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{profile.TypeVideo, profile.TypeAudio, profile.TypeFormat}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}
