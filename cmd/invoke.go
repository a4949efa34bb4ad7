package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <function> [json]",
	Short: "Run one function locally",
	Long: "Run one function against the configured store and print its response\n" +
		"envelope. The JSON body is read from the second argument, or from stdin\n" +
		"when the argument is omitted or \"-\".",
	Example: `  synapse invoke get-leaderboard '{"type":"streak","limit":10}'
  echo '{"userId":"u1"}' | synapse invoke get-user-analytics`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBody(cmd.InOrStdin(), args[1:])
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		status, env := rt.registry.Invoke(cmd.Context(), args[0], body)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		if !env.Success {
			return fmt.Errorf("%s failed with status %d", args[0], status)
		}
		return nil
	},
}

func readBody(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		return []byte(args[0]), nil
	}
	if len(args) == 0 {
		if f, ok := stdin.(*os.File); ok {
			if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
				return []byte("{}"), nil
			}
		}
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return []byte("{}"), nil
	}
	return b, nil
}
