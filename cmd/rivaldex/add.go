package main

import (
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <primary> <target>",
		Short: "Track target as a competitor of primary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFromFlags(cmd)
			env, err := client.do("POST", "/api/v1/competitors", map[string]string{
				"primary": args[0],
				"target":  args[1],
			})
			if err != nil {
				return err
			}
			return printJSON(env.Data)
		},
	}
}
