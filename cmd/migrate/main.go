// Copyright 2026 The OpenShelf Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command migrate applies the database schema and seeds the baseline roles.
// It reads the same environment variables as the server, so it can run as
// an init container in front of it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openshelf/openshelf/internal/audit"
	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/observability/logger"
	"github.com/openshelf/openshelf/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	ctx := context.Background()

	db, err := postgres.New(ctx, postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxOpenConns,
		MinConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("applying initial schema")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		slog.Error("migration failed", logger.Error(err))
		os.Exit(1)
	}

	slog.Info("seeding baseline roles")
	seeder := authz.NewSeeder(
		postgres.NewRoleRepository(db),
		postgres.NewGrantRepository(db),
		audit.NewSlogLogger(),
	)
	if err := seeder.Seed(ctx); err != nil {
		slog.Error("seeding failed", logger.Error(err))
		os.Exit(1)
	}

	slog.Info("migration complete")
}
