// Package cli implements the memberauth command.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/memberAuth/internal/logging"
)

var (
	flagDB        string
	flagRedis     string
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// NewRootCmd creates the root cobra command for the memberauth CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "memberauth",
		Short: "memberauth manages members, sessions and site secrets",
		Long: `memberauth serves a cookie-authenticated member site and administers
its SQLite member database and active login sessions.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagDB, "db", envOr("MEMBERAUTH_DB", "memberauth.db"), "SQLite database path (or MEMBERAUTH_DB env)")
	root.PersistentFlags().StringVar(&flagRedis, "redis", envOr("MEMBERAUTH_REDIS", ""), "Redis address for session tokens and throttling (or MEMBERAUTH_REDIS env)")
	root.PersistentFlags().StringVar(&flagConfig, "config", envOr("MEMBERAUTH_CONFIG", ""), "YAML engine config file (or MEMBERAUTH_CONFIG env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newServeCmd(),
		newMemberCmd(),
		newLevelCmd(),
		newSessionsCmd(),
		newSecretCmd(),
	)

	return root
}
