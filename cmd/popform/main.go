// Copyright 2026 Popform Authors
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

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/JoshuaAmaju/popform/pkg/config"
	"github.com/JoshuaAmaju/popform/pkg/form"
	"github.com/JoshuaAmaju/popform/pkg/logger"
	"github.com/JoshuaAmaju/popform/pkg/metrics"
	"github.com/JoshuaAmaju/popform/pkg/pathstore"
)

func main() {
	// Initialize the global logger first thing
	logger.Initialize()

	log := logger.For(logger.ComponentCore)

	configPath := flag.String("config", "form.yaml", "path to the form declaration")
	metricsAddr := flag.String("metrics-addr", "", "address to expose prometheus metrics on (disabled when empty)")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for the form to settle")
	flag.Parse()

	cfg, err := config.LoadFormConfig(*configPath)
	if err != nil {
		log.Errorf("Failed to load form config: %v", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warnf("Metrics server stopped: %v", err)
			}
		}()
		log.Infof("Serving metrics on %s/metrics", *metricsAddr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	supervisor := form.NewSupervisor(form.Config{
		ID:            cfg.ID,
		InitialValues: cfg.InitialValues,
		InitialErrors: cfg.InitialErrorValues(),
		Submitter: func(ctx context.Context, values *pathstore.Store) (any, error) {
			// Demo submitter: pretend to talk to a backend and echo the values.
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return values.Flatten(), nil
		},
	})

	if err := supervisor.Start(ctx); err != nil {
		log.Errorf("Failed to start supervisor: %v", err)
		os.Exit(1)
	}
	defer supervisor.Stop()

	for _, f := range cfg.Fields {
		supervisor.Spawn(f.ID, nil, f.Validator())
	}

	supervisor.Submit()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Errorf("Form %s did not settle: %v", cfg.ID, ctx.Err())
			os.Exit(1)
		case <-ticker.C:
		}

		state := supervisor.State()
		if state == form.OperationalStateSubmitted || state == form.OperationalStateError || state == form.OperationalStateIdle {
			snapshot := supervisor.Snapshot()
			out, err := snapshot.JSON()
			if err != nil {
				log.Errorf("Failed to serialize snapshot: %v", err)
				os.Exit(1)
			}
			fmt.Println(string(out))

			if state != form.OperationalStateSubmitted {
				log.Warnf("Form %s finished in state %s (failures: %d, retry in %s)",
					cfg.ID, state, supervisor.FailureCount(), supervisor.RetryDelay())
				os.Exit(1)
			}

			log.Infof("Form %s submitted", cfg.ID)
			return
		}
	}
}
