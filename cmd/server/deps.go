package main

import (
	"database/sql"

	"github.com/jengzang/runtrack-go/internal/client"
	"github.com/jengzang/runtrack-go/internal/config"
	"github.com/jengzang/runtrack-go/internal/geolocation"
	"github.com/jengzang/runtrack-go/internal/logging"
	"github.com/jengzang/runtrack-go/internal/repository"
	"github.com/jengzang/runtrack-go/internal/service"
	"github.com/jengzang/runtrack-go/internal/tracking"
)

// deps 服务依赖
type deps struct {
	opts       tracking.Options
	relay      *geolocation.Relay // nil when replaying from a file
	runsClient *client.RunsClient
	outbox     *service.OutboxService
}

// buildDeps wires the tracking collaborators. Failed runs are only queued
// when something can deliver them later, so the queue and the outbox
// service are either both present or both absent.
func buildDeps(cfg *config.Config, openDB func(path string) (*sql.DB, error)) (*deps, error) {
	d := &deps{}

	// 位置来源: 回放文件或 HTTP 推送
	if cfg.Geolocation.ReplayPath != "" {
		d.opts.Source = geolocation.NewFileSource(cfg.Geolocation.ReplayPath)
		logging.Info().Str("path", cfg.Geolocation.ReplayPath).Msg("replaying positions from file")
	} else {
		d.relay = geolocation.NewRelay()
		d.opts.Source = d.relay
	}
	d.opts.TickInterval = cfg.Tracking.TickInterval

	if cfg.Runs.URL == "" {
		logging.Warn().Msg("runs API not configured; finished runs will not be saved")
		return d, nil
	}

	d.runsClient = client.NewRunsClient(client.Config{
		BaseURL: cfg.Runs.URL,
		Token:   cfg.Runs.Token,
		Timeout: cfg.Runs.Timeout,
	})
	d.opts.Saver = d.runsClient

	if !cfg.OutboxEnabled() {
		return d, nil
	}

	db, err := openDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	outboxRepo := repository.NewOutboxRepository(db)
	d.opts.Queue = outboxRepo
	d.outbox = service.NewOutboxService(outboxRepo, d.runsClient, service.OutboxConfig{
		Interval:  cfg.Outbox.Interval,
		BatchSize: cfg.Outbox.BatchSize,
	})

	return d, nil
}
