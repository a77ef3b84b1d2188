package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

// recoverCommands re-dispatches staging records whose spreadsheet write never
// landed, once, outside the worker process.
func recoverCommands(a *attendanceInstance) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "re-dispatch stale attendance records",
		Run: func(cmd *cobra.Command, args []string) {
			defer func() { _ = a.attendance.Close() }()

			if olderThan == 0 {
				olderThan = time.Duration(a.cnf.Recovery.StaleAfterSec) * time.Second
			}

			n, err := a.attendance.RecoverStaleAttendance(context.Background(), olderThan)
			if err != nil {
				log.Fatalf("Error recovering attendance: %v", err)
			}
			fmt.Printf("Re-dispatched %d attendance records\n", n)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only records untouched for this long (defaults to recovery.stale_after_sec)")
	return cmd
}
