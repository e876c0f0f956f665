package main

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <primary>",
		Short: "List competitors tracked by primary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFromFlags(cmd)
			env, err := client.do("GET", "/api/v1/competitors?primary="+url.QueryEscape(args[0]), nil)
			if err != nil {
				return err
			}
			return printJSON(env.Data)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <primary> <target>",
		Short: "Show one tracked competitor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFromFlags(cmd)
			env, err := client.do("GET", "/api/v1/competitors/"+url.PathEscape(args[0])+"/"+url.PathEscape(args[1]), nil)
			if err != nil {
				return err
			}
			return printJSON(env.Data)
		},
	}
}
