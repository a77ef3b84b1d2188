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

package attendance

import (
	"context"
	"embed"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/cubattendance/attendance/config"
	"github.com/cubattendance/attendance/database"
	"github.com/cubattendance/attendance/internal/auth"
	"github.com/cubattendance/attendance/internal/cache"
	"github.com/cubattendance/attendance/internal/identity"
	redis_db "github.com/cubattendance/attendance/internal/redis-db"
	"github.com/cubattendance/attendance/internal/sheets"
	"github.com/cubattendance/attendance/internal/taskstatus"
)

var tracer = otel.Tracer("attendance")

//go:embed sql/*.sql
var SQLFiles embed.FS

// Attendance wires the staging store, the spreadsheet client and the task
// delivery layer together. It is shared by the API and the workers.
type Attendance struct {
	config     *config.Configuration
	datasource database.IDataSource
	sheets     sheets.Client
	queue      *Queue
	redis      redis.UniversalClient
	statuses   *taskstatus.Store
	cache      cache.Cache
	engine     *Engine
	verifier   identity.Verifier
	issuer     *auth.Issuer
}

// Dependencies lists the collaborators of an Attendance instance. Zero fields
// are built from the loaded configuration by NewAttendance.
type Dependencies struct {
	DataSource database.IDataSource
	Sheets     sheets.Client
	Redis      redis.UniversalClient
	Queue      *Queue
	Verifier   identity.Verifier
}

// NewAttendance builds an Attendance instance from the loaded configuration.
func NewAttendance(db database.IDataSource, sheetsClient sheets.Client) (*Attendance, error) {
	return NewAttendanceWith(Dependencies{DataSource: db, Sheets: sheetsClient})
}

// NewAttendanceWith builds an Attendance instance, creating any dependency
// left empty in deps.
func NewAttendanceWith(deps Dependencies) (*Attendance, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if deps.Redis == nil {
		deps.Redis, err = redis_db.NewRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			return nil, err
		}
	}
	if deps.Queue == nil {
		deps.Queue, err = NewQueue(cfg)
		if err != nil {
			return nil, err
		}
	}
	if deps.Verifier == nil {
		deps.Verifier = identity.NewGoogleVerifier(cfg.Auth)
	}

	retention := time.Duration(cfg.Queue.RetentionHours) * time.Hour
	statuses := taskstatus.NewStore(deps.Redis, retention)
	deps.Queue.statuses = statuses

	return &Attendance{
		config:     cfg,
		datasource: deps.DataSource,
		sheets:     deps.Sheets,
		queue:      deps.Queue,
		redis:      deps.Redis,
		statuses:   statuses,
		cache:      cache.New(deps.Redis, cache.Options{LocalSize: 1000, LocalTTL: time.Minute}),
		engine:     NewEngine(deps.Sheets),
		verifier:   deps.Verifier,
		issuer:     auth.NewIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour),
	}, nil
}

// Queue returns the task delivery layer.
func (a *Attendance) Queue() *Queue {
	return a.queue
}

// Statuses returns the task status store.
func (a *Attendance) Statuses() *taskstatus.Store {
	return a.statuses
}

// Close releases the queue connections.
func (a *Attendance) Close() error {
	return a.queue.Close()
}
