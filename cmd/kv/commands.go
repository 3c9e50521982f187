package kv

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/sKV/rpc/client"
	"github.com/spf13/cobra"
)

var (
	execCmd = &cobra.Command{
		Use:   "exec [command] [args...]",
		Short: "Sends any command and prints its reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.OutOrStdout(), rpcClient, args...)
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value] [options...]",
		Short: "Sets the value for a key (options: EX s, PX ms, NX, XX)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.OutOrStdout(), rpcClient, append([]string{"set"}, args...)...)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.OutOrStdout(), rpcClient, "get", args[0])
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [keys...]",
		Short: "Deletes keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.OutOrStdout(), rpcClient, append([]string{"del"}, args...)...)
		},
	}
	expireCmd = &cobra.Command{
		Use:   "expire [key] [seconds]",
		Short: "Sets the time to live of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.OutOrStdout(), rpcClient, "expire", args[0], args[1])
		},
	}
	ttlCmd = &cobra.Command{
		Use:   "ttl [key]",
		Short: "Prints the remaining time to live of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.OutOrStdout(), rpcClient, "ttl", args[0])
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [pattern]",
		Short: "Lists the keys matching a glob pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}
			return send(cmd.OutOrStdout(), rpcClient, "keys", pattern)
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [pattern]",
		Short: "Iterates all keys matching a pattern with SCAN",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}
			count, _ := cmd.Flags().GetInt("count")
			return scanAll(cmd.OutOrStdout(), rpcClient, pattern, count)
		},
	}
)

func init() {
	scanCmd.Flags().Int("count", 100, "COUNT hint of every SCAN call")
}

// send sends one command and prints the reply. Error replies are returned as error.
func send(w io.Writer, c *client.Client, args ...string) error {
	v, err := c.Do(args...)
	if err != nil {
		return err
	}
	if v.IsError() {
		return fmt.Errorf("%s", v.Str)
	}
	_, err = fmt.Fprintln(w, v.String())
	return err
}

// scanAll follows the SCAN cursor until it returns to 0 and prints every key
func scanAll(w io.Writer, c *client.Client, pattern string, count int) error {
	cursor := "0"
	for {
		v, err := c.Do("scan", cursor, "match", pattern, "count", fmt.Sprint(count))
		if err != nil {
			return err
		}
		if v.IsError() {
			return fmt.Errorf("%s", v.Str)
		}
		if len(v.Array) != 2 {
			return fmt.Errorf("unexpected scan reply: %s", v)
		}
		for _, key := range v.Array[1].Array {
			if _, err := fmt.Fprintln(w, key.Str); err != nil {
				return err
			}
		}
		cursor = v.Array[0].Str
		if cursor == "0" {
			return nil
		}
	}
}

