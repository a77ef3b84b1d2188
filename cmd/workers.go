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
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/cubattendance/attendance"
	"github.com/cubattendance/attendance/config"
	redis_db "github.com/cubattendance/attendance/internal/redis-db"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// initializeQueues weights the attendance queue above the maintenance queue so
// a slow name refresh never starves sign-ins.
func initializeQueues(conf *config.Configuration) map[string]int {
	return map[string]int{
		conf.Queue.AttendanceQueue:  6,
		conf.Queue.MaintenanceQueue: 1,
	}
}

func failureLogger(ctx context.Context, task *asynq.Task, err error) {
	id, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logrus.WithError(err).WithFields(logrus.Fields{
		"task_id":   id,
		"task_name": task.Type(),
		"retried":   retried,
		"max_retry": maxRetry,
	}).Warn("task attempt failed")
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.AsynqConnOpt(conf.Redis)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		redisOption,
		asynq.Config{
			Concurrency:  conf.Queue.Concurrency,
			Queues:       queues,
			ErrorHandler: asynq.ErrorHandlerFunc(failureLogger),
			Logger:       logrus.StandardLogger(),
		},
	), nil
}

// initializeScheduler registers the periodic name autocomplete refresh.
func initializeScheduler(a *attendanceInstance) (*asynq.Scheduler, error) {
	redisOption, err := redis_db.AsynqConnOpt(a.cnf.Redis)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	scheduler := asynq.NewScheduler(redisOption, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logrus.StandardLogger(),
	})
	entryID, err := a.attendance.Queue().RegisterPeriodicTasks(scheduler)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"entry_id": entryID,
		"spec":     a.cnf.Queue.AutocompleteSpec,
	}).Info("registered name autocomplete refresh")
	return scheduler, nil
}

func startMonitoring(conf *config.Configuration) {
	redisOption, err := redis_db.AsynqConnOpt(conf.Redis)
	if err != nil {
		logrus.WithError(err).Error("asynqmon disabled")
		return
	}

	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: redisOption,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			logrus.WithError(err).Error("could not start asynqmon server")
		}
	}()
}

// workerCommands defines the "workers" command: the task server for sign-ins,
// sign-outs and the name refresh, the periodic scheduler, the queue monitor and,
// when enabled, the stale attendance recovery processor.
func workerCommands(a *attendanceInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start attendance workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			defer func() { _ = a.attendance.Close() }()

			shutdown, err := initializeObservability(ctx, a.cnf, "attendance-workers")
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			srv, err := initializeWorkerServer(a.cnf, initializeQueues(a.cnf))
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			a.attendance.RegisterTaskHandlers(mux)

			scheduler, err := initializeScheduler(a)
			if err != nil {
				log.Fatal(err)
			}
			if err := scheduler.Start(); err != nil {
				log.Fatalf("could not start scheduler: %v", err)
			}
			defer scheduler.Shutdown()

			startMonitoring(a.cnf)

			if a.cnf.Recovery.Enabled {
				processor := attendance.NewAttendanceRecoveryProcessor(a.attendance)
				processor.Start(ctx)
				defer processor.Stop()
			}

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
