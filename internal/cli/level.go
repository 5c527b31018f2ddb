package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	memberAuth "github.com/MrEthical07/memberAuth"
	"github.com/MrEthical07/memberAuth/permission"
	"github.com/MrEthical07/memberAuth/store"
)

func newLevelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Manage membership levels",
	}
	cmd.AddCommand(newLevelSetCmd(), newLevelListCmd())
	return cmd
}

func newLevelSetCmd() *cobra.Command {
	var (
		alias  string
		role   string
		caps   []string
		period int
		unit   string
	)

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Create or replace a membership level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if _, err := fmt.Sscan(args[0], &id); err != nil || id <= 0 {
				return fmt.Errorf("invalid level id %q", args[0])
			}
			u, err := parseDurationUnit(unit)
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			lvl := store.Level{
				Tier: permission.Tier{
					ID:           id,
					Alias:        alias,
					Role:         role,
					Capabilities: caps,
				},
				Subscription: memberAuth.Duration{Period: period, Unit: u},
			}
			if err := rt.store.UpsertLevel(cmd.Context(), lvl); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Level %d (%s) saved\n", id, alias)
			return nil
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Display name")
	cmd.Flags().StringVar(&role, "role", "subscriber", "Role granted to members")
	cmd.Flags().StringSliceVar(&caps, "cap", nil, "Capability (repeatable or comma-separated)")
	cmd.Flags().IntVar(&period, "period", 0, "Subscription length (0 never expires)")
	cmd.Flags().StringVar(&unit, "unit", "", "Subscription unit: days, weeks, months, years")
	return cmd
}

func newLevelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List membership levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			levels, err := rt.store.ListLevels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list levels: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(levels) == 0 {
				fmt.Fprintln(out, "No levels found.")
				return nil
			}
			fmt.Fprintf(out, "%-4s  %-16s  %-12s  %-12s  %s\n", "ID", "ALIAS", "ROLE", "DURATION", "CAPABILITIES")
			for _, lvl := range levels {
				duration := "never"
				if !lvl.Subscription.NoExpiry() {
					duration = fmt.Sprintf("%d %s", lvl.Subscription.Period, lvl.Subscription.Unit)
				}
				fmt.Fprintf(out, "%-4d  %-16s  %-12s  %-12s  %s\n",
					lvl.Tier.ID, lvl.Tier.Alias, lvl.Tier.Role, duration, strings.Join(lvl.Tier.Capabilities, ","))
			}
			return nil
		},
	}
}

func parseDurationUnit(s string) (memberAuth.DurationUnit, error) {
	switch u := memberAuth.DurationUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case memberAuth.UnitNoExpiry, memberAuth.UnitDays, memberAuth.UnitWeeks, memberAuth.UnitMonths, memberAuth.UnitYears:
		return u, nil
	default:
		return "", fmt.Errorf("unknown subscription unit %q", s)
	}
}
