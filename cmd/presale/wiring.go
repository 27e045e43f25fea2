package main

import (
	"fmt"
	"log"
	"time"

	"github.com/zulandar/presale/internal/approval"
	"github.com/zulandar/presale/internal/config"
	"github.com/zulandar/presale/internal/db"
	"github.com/zulandar/presale/internal/notify"
	"github.com/zulandar/presale/internal/notify/discord"
	"github.com/zulandar/presale/internal/notify/slack"
	"github.com/zulandar/presale/internal/sweeper"
	"gorm.io/gorm"
)

// nowFunc is swapped out in tests.
var nowFunc = time.Now

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	return cfg, gormDB, nil
}

// buildNotifier returns a notifier for every configured chat platform.
func buildNotifier(cfg *config.Config) (notify.Notifier, error) {
	var multi notify.Multi
	if cfg.Notify.Slack.Enabled() {
		n, err := slack.New(slack.Opts{BotToken: cfg.Notify.Slack.BotToken, ChannelID: cfg.Notify.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	if cfg.Notify.Discord.Enabled() {
		n, err := discord.New(discord.Opts{BotToken: cfg.Notify.Discord.BotToken, ChannelID: cfg.Notify.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	if len(multi) == 0 {
		return notify.Nop{}, nil
	}
	log.Printf("presale: notifying %d chat platform(s)", len(multi))
	return multi, nil
}

// buildService wires the approval service and sweeper from config.
func buildService(cfg *config.Config, gormDB *gorm.DB) (*approval.Service, *sweeper.Sweeper, error) {
	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := approval.New(approval.Opts{
		DB:                gormDB,
		Quorum:            cfg.Approval.Quorum,
		PlanPendingWindow: cfg.Approval.PlanPendingWindow,
		Notifier:          notifier,
	})
	if err != nil {
		return nil, nil, err
	}
	sw, err := sweeper.New(sweeper.Opts{
		DB:           gormDB,
		Resolver:     svc,
		Holder:       cfg.Sweep.Holder,
		LeaseTimeout: cfg.Sweep.LeaseTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, sw, nil
}
