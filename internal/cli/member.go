package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	memberAuth "github.com/MrEthical07/memberAuth"
	"github.com/MrEthical07/memberAuth/internal"
)

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage member accounts",
	}
	cmd.AddCommand(
		newMemberAddCmd(),
		newMemberStateCmd(),
		newMemberPasswdCmd(),
		newMemberShowCmd(),
		newMemberListCmd(),
	)
	return cmd
}

func newMemberAddCmd() *cobra.Command {
	var (
		email     string
		firstName string
		lastName  string
		password  string
		level     int64
		state     string
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a member (a password is generated when none is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := memberAuth.ParseAccountState(state)
			if err != nil {
				return err
			}

			generated := password == ""
			if generated {
				password, err = internal.NewPassword(16)
				if err != nil {
					return fmt.Errorf("generate password: %w", err)
				}
			}

			rt, err := openRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			hash, err := rt.engine.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			m := &memberAuth.Member{
				Username:     args[0],
				Email:        email,
				FirstName:    firstName,
				LastName:     lastName,
				PasswordHash: hash,
				State:        st,
				TierID:       level,
			}
			if level > 0 {
				m.SubscriptionStart = time.Now().UTC()
			}
			id, err := rt.store.Insert(cmd.Context(), m)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created member %d (%s)\n", id, m.Username)
			if generated {
				fmt.Fprintf(out, "Password: %s\n", password)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&password, "password", "", "Password (generated when empty)")
	cmd.Flags().Int64Var(&level, "level", 0, "Membership level id; the subscription starts today")
	cmd.Flags().StringVar(&state, "state", string(memberAuth.AccountActive), "Account state")
	return cmd
}

func newMemberStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <username> <active|inactive|expired|pending|activation_required>",
		Short: "Change the account state of a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := memberAuth.ParseAccountState(args[1])
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := rt.store.FindByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("member %s: %w", args[0], err)
			}
			if err := rt.store.Update(cmd.Context(), m.ID, memberAuth.MemberUpdate{State: &st}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Member %s is now %s\n", m.Username, st)
			return nil
		},
	}
}

func newMemberPasswdCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set a new password and end every session of the member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			generated := password == ""
			if generated {
				var err error
				password, err = internal.NewPassword(16)
				if err != nil {
					return fmt.Errorf("generate password: %w", err)
				}
			}

			rt, err := openRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := rt.store.FindByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("member %s: %w", args[0], err)
			}
			hash, err := rt.engine.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			if err := rt.store.Update(cmd.Context(), m.ID, memberAuth.MemberUpdate{PasswordHash: &hash}); err != nil {
				return err
			}
			if err := rt.engine.Limiter().Clear(cmd.Context(), m.ID, ""); err != nil {
				logger.Warn("clear session tokens", "member_id", m.ID, "error", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Password changed for %s\n", m.Username)
			if generated {
				fmt.Fprintf(out, "Password: %s\n", password)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "New password (generated when empty)")
	return cmd
}

func newMemberShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <username|id>",
		Short: "Show a member record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := findMember(cmd, rt, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:            %d\n", m.ID)
			fmt.Fprintf(out, "Username:      %s\n", m.Username)
			fmt.Fprintf(out, "Email:         %s\n", m.Email)
			fmt.Fprintf(out, "Name:          %s %s\n", m.FirstName, m.LastName)
			fmt.Fprintf(out, "State:         %s\n", m.State)
			fmt.Fprintf(out, "Level:         %d\n", m.TierID)
			if end, ok := m.ExpiresAt(); ok {
				fmt.Fprintf(out, "Expires:       %s\n", end.Format(time.DateOnly))
			} else {
				fmt.Fprintf(out, "Expires:       never\n")
			}
			if !m.LastAccessed.IsZero() {
				fmt.Fprintf(out, "Last accessed: %s from %s\n", m.LastAccessed.Format(time.RFC3339), m.LastAccessedIP)
			}
			return nil
		},
	}
}

func newMemberListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			members, total, err := rt.store.ListMembers(cmd.Context(), limit, offset)
			if err != nil {
				return fmt.Errorf("list members: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(members) == 0 {
				fmt.Fprintln(out, "No members found.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-24s  %-20s  %-6s  %s\n", "ID", "USERNAME", "STATE", "LEVEL", "EMAIL")
			for _, m := range members {
				fmt.Fprintf(out, "%-6d  %-24s  %-20s  %-6d  %s\n", m.ID, m.Username, m.State, m.TierID, m.Email)
			}
			if offset+len(members) < total {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(members), total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

// findMember resolves a numeric id or a user name.
func findMember(cmd *cobra.Command, rt *runtime, ref string) (*memberAuth.Member, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		m, err := rt.store.FindByID(cmd.Context(), id)
		if err == nil || !errors.Is(err, memberAuth.ErrMemberNotFound) {
			return m, err
		}
	}
	m, err := rt.store.FindByUsername(cmd.Context(), ref)
	if err != nil {
		return nil, fmt.Errorf("member %s: %w", ref, err)
	}
	return m, nil
}
