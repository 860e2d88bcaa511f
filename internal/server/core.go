/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/inkintime/internal/calsource"
	"github.com/friendsincode/inkintime/internal/compiler"
	"github.com/friendsincode/inkintime/internal/config"
	"github.com/friendsincode/inkintime/internal/db"
	"github.com/friendsincode/inkintime/internal/events"
	"github.com/friendsincode/inkintime/internal/store"
)

// Core holds what every command needs: the database, the slot store, the
// validated schedule and a compile service publishing to Bus.
type Core struct {
	DB       *gorm.DB
	Store    *store.Store
	Schedule *config.Schedule
	Compiler *compiler.Service
	Bus      *events.Bus
}

// OpenCore connects and migrates the database, loads the schedule file and
// builds the compile service. opts are applied after the event publisher.
func OpenCore(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...compiler.Option) (*Core, error) {
	schedule, err := config.LoadSchedule(cfg.ScheduleFile)
	if err != nil {
		return nil, err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return nil, err
	}
	core := &Core{DB: database, Schedule: schedule, Bus: events.NewBus()}

	if err := db.Migrate(database); err != nil {
		_ = core.Close()
		return nil, err
	}
	core.Store = store.New(database, logger)
	if err := core.Store.EnsureStates(ctx); err != nil {
		_ = core.Close()
		return nil, err
	}

	client := &http.Client{Timeout: cfg.ICSTimeout}
	sources, err := calsource.NewAll(schedule.Calendars.Blocked, client, logger)
	if err != nil {
		_ = core.Close()
		return nil, fmt.Errorf("calendars: %w", err)
	}

	opts = append([]compiler.Option{compiler.WithPublisher(core.Bus)}, opts...)
	core.Compiler, err = compiler.New(core.Store, schedule, sources, logger, opts...)
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	return core, nil
}

// Close releases the database.
func (c *Core) Close() error {
	if c.DB == nil {
		return nil
	}
	return db.Close(c.DB)
}
