package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clear active login sessions",
	}
	cmd.AddCommand(
		newSessionsListCmd(),
		newSessionsClearCmd(),
		newSessionsPruneCmd(),
	)
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <username|id>",
		Short: "List the live session tokens of a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), runtimeOptions{requireSessions: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := findMember(cmd, rt, args[0])
			if err != nil {
				return err
			}
			tokens, err := rt.engine.Limiter().ValidTokens(cmd.Context(), m.ID)
			if err != nil {
				return fmt.Errorf("read session tokens: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(tokens) == 0 {
				fmt.Fprintf(out, "No active sessions for %s.\n", m.Username)
				return nil
			}

			hashes := make([]string, 0, len(tokens))
			for h := range tokens {
				hashes = append(hashes, h)
			}
			sort.Slice(hashes, func(i, j int) bool {
				return tokens[hashes[i]].CreatedAt < tokens[hashes[j]].CreatedAt
			})

			fmt.Fprintf(out, "%-12s  %-20s  %-20s  %-15s  %s\n", "TOKEN", "CREATED", "EXPIRES", "IP", "USER AGENT")
			for _, h := range hashes {
				tok := tokens[h]
				fmt.Fprintf(out, "%-12s  %-20s  %-20s  %-15s  %s\n",
					h[:12],
					time.Unix(tok.CreatedAt, 0).UTC().Format(time.DateTime),
					time.Unix(tok.ExpiresAt, 0).UTC().Format(time.DateTime),
					tok.IP, tok.UserAgent)
			}
			fmt.Fprintf(out, "\n%d of %d allowed\n", len(tokens), rt.engine.Limiter().MaxConcurrent())
			return nil
		},
	}
}

func newSessionsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <username|id>",
		Short: "End every session of a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), runtimeOptions{requireSessions: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := findMember(cmd, rt, args[0])
			if err != nil {
				return err
			}
			if err := rt.engine.Limiter().Clear(cmd.Context(), m.ID, ""); err != nil {
				return fmt.Errorf("clear session tokens: %w", err)
			}
			logger.Info("session tokens cleared", "member_id", m.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "All sessions of %s cleared\n", m.Username)
			return nil
		},
	}
}

func newSessionsPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune <username|id>",
		Short: "Drop the expired session tokens of a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), runtimeOptions{requireSessions: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := findMember(cmd, rt, args[0])
			if err != nil {
				return err
			}
			if err := rt.engine.Limiter().DeleteExpired(cmd.Context(), m.ID); err != nil {
				return fmt.Errorf("prune session tokens: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expired sessions of %s pruned\n", m.Username)
			return nil
		},
	}
}
