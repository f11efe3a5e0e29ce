package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	port           int
	postgresURL    string
	apiURL         string
	natsURL        string
	jwtKey         string
	allowedOrigins []string
	graceDelay     time.Duration
	debug          bool
	prettyLog      bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.jwtKey == "" {
		return errors.New("missing jwt signing key (--jwt-key / JOINUP_JWT_KEY)")
	}
	if c.apiURL == "" {
		return errors.New("missing backend api url (--api-url / JOINUP_API_URL)")
	}
	if len(c.allowedOrigins) == 0 {
		return errors.New("missing allowed origins (--allowed-origins / JOINUP_ALLOWED_ORIGINS)")
	}
	if c.graceDelay < 0 {
		return errors.New("grace delay must not be negative")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("JOINUP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "joinup",
		Short:         "Room and game-session service for the JoinUp party-game app.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: JOINUP_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 5000, "port to listen on (env: JOINUP_PORT)")
	fs.StringVar(&cfg.postgresURL, "postgres-url", "", "postgres connection string; empty runs the in-memory store (env: JOINUP_POSTGRES_URL)")
	fs.StringVar(&cfg.apiURL, "api-url", "", "base url of the profile/stats backend (env: JOINUP_API_URL)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "nats url for push notifications; empty disables them (env: JOINUP_NATS_URL)")
	fs.StringVar(&cfg.jwtKey, "jwt-key", "", "shared hs256 key for session token verification (env: JOINUP_JWT_KEY)")
	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", nil, "comma-separated allowed cors origins (env: JOINUP_ALLOWED_ORIGINS)")
	fs.DurationVar(&cfg.graceDelay, "grace-delay", 3*time.Second, "delay between ending a room and deleting its document (env: JOINUP_GRACE_DELAY)")
	fs.BoolVar(&cfg.debug, "debug", false, "enable debug logging (env: JOINUP_DEBUG)")
	fs.BoolVar(&cfg.prettyLog, "pretty-log", false, "human-readable log output instead of json (env: JOINUP_PRETTY_LOG)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("joinup v{{.Version}}\n")

	cmd.SilenceUsage = true

	return cmd
}
