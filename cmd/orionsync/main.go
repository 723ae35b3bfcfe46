/*
 * Copyright 2025 Carver Automation Corporation.
 *
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

// orionsync reconciles the desired state of a monitored node against a
// SolarWinds Orion NPM inventory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/carverauto/orionsync/pkg/config"
	"github.com/carverauto/orionsync/pkg/logger"
	"github.com/carverauto/orionsync/pkg/models"
	"github.com/carverauto/orionsync/pkg/nodes"
	"github.com/carverauto/orionsync/pkg/swis"
)

var errInvalidState = errors.New("invalid or missing node state")

type appConfig struct {
	SWIS    swis.Config        `json:"swis"`
	Logging *logger.Config     `json:"logging,omitempty"`
	Node    models.NodeRequest `json:"node"`
}

// Validate implements config.Validator.
func (c *appConfig) Validate() error {
	if err := c.SWIS.Validate(); err != nil {
		return err
	}

	if !c.Node.State.Valid() {
		return fmt.Errorf("%w: %q", errInvalidState, c.Node.State)
	}

	return nil
}

func main() {
	configPath := flag.String("config", "/etc/orionsync/orionsync.json", "Path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The password can be kept out of the config file.
	if password := os.Getenv("ORION_PASSWORD"); password != "" {
		cfg.SWIS.Password = password
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	client := swis.NewClient(&cfg.SWIS, appLogger)

	if err := client.Ping(ctx); err != nil {
		appLogger.Fatal().Err(err).Msg("Orion connectivity check failed")
	}

	engine := nodes.New(client, appLogger)

	result, err := engine.Apply(ctx, &cfg.Node)
	if err != nil {
		appLogger.Error().Err(err).
			Str("state", string(cfg.Node.State)).
			Msg("Lifecycle operation failed")
		os.Exit(1)
	}

	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		appLogger.Fatal().Err(err).Msg("Failed to encode result")
	}
}
