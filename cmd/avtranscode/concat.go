package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zsiec/avtranscode/internal/input"
	"github.com/zsiec/avtranscode/internal/output"
	"github.com/zsiec/avtranscode/internal/transcoder"
)

func newConcatCommand(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "concat FILE...",
		Short: "Concatenate the first stream of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inputs := make([]*input.File, 0, len(args))
			defer func() {
				for _, f := range inputs {
					_ = f.Close()
				}
			}()
			for _, name := range args {
				f, err := input.Open(ctx, name, a.log)
				if err != nil {
					return err
				}
				inputs = append(inputs, f)
			}

			dst, err := output.Create(ctx, out, a.log)
			if err != nil {
				return err
			}
			d, err := transcoder.Concat(ctx, dst, inputs, a.log)
			if err != nil {
				_ = dst.EndWrap()
				return err
			}
			fmt.Printf("%s: %.3fs\n", out, d)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "output.wav", "Output file")
	return cmd
}
