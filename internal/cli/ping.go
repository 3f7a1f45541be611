/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomoncle/lattice/database"
)

// PingOptions holds flags for the ping command.
type PingOptions struct {
	*RootOptions
	Config  string
	Type    string
	DSN     string
	Timeout time.Duration
}

// PingResult is the printable health report of a database.
type PingResult struct {
	Type   string                 `json:"type"`
	Health *database.HealthStatus `json:"health"`
}

func (r PingResult) String() string {
	var b strings.Builder
	state := "healthy"
	if !r.Health.Healthy {
		state = "unhealthy"
	}
	fmt.Fprintf(&b, "%s: %s (%s)", r.Type, state, r.Health.ResponseTime)
	fmt.Fprintf(&b, "\nconnections: open=%d idle=%d max=%d",
		r.Health.ActiveConns+r.Health.IdleConns, r.Health.IdleConns, r.Health.MaxOpenConns)
	if r.Health.LastError != "" {
		fmt.Fprintf(&b, "\nerror: %s", r.Health.LastError)
	}
	return b.String()
}

// NewPingCommand creates the ping command.
func NewPingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Connect to a database and report its health",
		Long: `Connect to the configured database, run a health check and print
the result. The --type and --dsn flags override the YAML config file and
DB_* environment variables override both.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "database config file (YAML)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "database type (mysql|postgres|sqlite)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "data source name")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "connect and check timeout")

	return cmd
}

func runPing(opts *PingOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := pingConfig(opts)
	if err != nil {
		_ = formatter.Error(CodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid database config", err)
	}
	formatter.VerboseLog("connecting to %s database", cfg.Connection.Type)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	if _, err := database.InitDBContext(ctx, cfg); err != nil {
		_ = formatter.Error(CodeDatabase, err.Error(), nil)
		return WrapExitError(ExitFailure, "database connection failed", err)
	}
	defer func() { _ = database.CloseDB() }()

	status := database.GetHealthStatus(ctx)
	if err := formatter.Success(PingResult{Type: cfg.Connection.Type, Health: status}); err != nil {
		return err
	}
	if !status.Healthy {
		return NewExitError(ExitFailure, "database unhealthy")
	}
	return nil
}

func pingConfig(opts *PingOptions) (*database.Config, error) {
	cfg := &database.Config{Connection: *database.DefaultConnectionConfig()}
	if opts.Config != "" {
		loaded, err := database.LoadConfig(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Type != "" {
		cfg.Connection.Type = opts.Type
	}
	if opts.DSN != "" {
		cfg.Connection.DSN = opts.DSN
	}
	database.OverrideFromEnv(&cfg.Connection)
	// A one-shot check needs no background health loop.
	cfg.Connection.HealthCheckInterval = 0
	if cfg.Connection.Type == "" {
		return nil, fmt.Errorf("database type is required")
	}
	return cfg, nil
}
