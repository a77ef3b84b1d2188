/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cubattendance/attendance"
	"github.com/cubattendance/attendance/config"
	"github.com/cubattendance/attendance/database"
	"github.com/cubattendance/attendance/internal/notification"
	"github.com/cubattendance/attendance/internal/sheets"
)

// CLI wraps the root Cobra command of the attendance binary.
type CLI struct {
	cmd *cobra.Command
}

// attendanceInstance holds the wired Attendance service and the configuration
// it was built from, shared by every subcommand.
type attendanceInstance struct {
	attendance *attendance.Attendance
	cnf        *config.Configuration
}

// recoverPanic logs a panic and exits with an error status.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and wires the Attendance instance before any
// subcommand runs.
func preRun(app *attendanceInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		a, err := setupAttendance(cmd.Context(), cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.attendance = a
		app.cnf = cnf
		return nil
	}
}

// setupAttendance connects the staging store and the spreadsheet client, then
// builds the Attendance instance and invites the configured admin account
// when no account exists yet.
func setupAttendance(ctx context.Context, cfg *config.Configuration) (*attendance.Attendance, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	sheetsClient, err := sheets.NewServiceAccountClient(ctx, cfg.Sheets)
	if err != nil {
		return nil, fmt.Errorf("error creating sheets client: %v", err)
	}

	a, err := attendance.NewAttendance(db, sheetsClient)
	if err != nil {
		return nil, fmt.Errorf("error creating attendance: %v", err)
	}

	if _, err := a.SeedUser(ctx, cfg.Server.AdminName, cfg.Server.AdminEmail); err != nil {
		logrus.WithError(err).Warn("failed to invite initial account")
	}
	return a, nil
}

// NewCLI builds the root command and its subcommands.
func NewCLI() *CLI {
	var configFile string
	a := &attendanceInstance{}

	var rootCmd = &cobra.Command{
		Use:   "attendance",
		Short: "Cub attendance backend",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./attendance.json", "Configuration file for the attendance backend")
	rootCmd.PersistentPreRunE = preRun(a, &configFile)

	rootCmd.AddCommand(serverCommands(a))
	rootCmd.AddCommand(workerCommands(a))
	rootCmd.AddCommand(migrateCommands(a))
	rootCmd.AddCommand(recoverCommands(a))
	rootCmd.AddCommand(configCommands())

	return &CLI{cmd: rootCmd}
}

func (c CLI) executeCLI() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
