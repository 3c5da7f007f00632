// Copyright 2025 Mercadia
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

package gateway

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"mercadia/gateway/gateway/llm/anthropic"
	"mercadia/gateway/guardrails"
	"mercadia/gateway/store"
	"mercadia/gateway/tools"
)

const sessionSweepInterval = 5 * time.Minute

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Run starts the gateway and blocks until SIGINT or SIGTERM.
//
// Environment:
//   - ANTHROPIC_API_KEY: upstream API key (proxy disabled without it)
//   - PORT: listen port (default 8080)
//   - MONGODB_URL / MONGODB_DATABASE: business data store
//   - REDIS_URL: shared session ledger (in-memory when unset)
//   - DATABASE_URL: Postgres audit log (disabled when unset)
//   - GATEWAY_CONFIG_FILE: YAML guardrail policy overlay
//   - GATEWAY_JWT_SECRET: protects the management endpoints when set
func Run() {
	log.Println("Starting Mercadia Gateway...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// business data
	mongoCfg := store.MongoConfig{
		URI:      getEnv("MONGODB_URL", "mongodb://localhost:27017"),
		Database: getEnv("MONGODB_DATABASE", "mercadia"),
	}
	stores, err := store.ConnectMongo(ctx, mongoCfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stores.Close(shutdownCtx)
	}()

	registry, err := tools.Catalog(tools.NewService(stores.Customers, stores.Products, stores.Orders))
	if err != nil {
		log.Fatalf("Failed to build tool catalog: %v", err)
	}

	// guardrail policy and session ledger
	cfg, err := guardrails.LoadConfig(os.Getenv("GATEWAY_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load guardrail config: %v", err)
	}

	var sessions guardrails.SessionStore
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisStore, err := guardrails.NewRedisSessionStore(ctx, redisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer func() { _ = redisStore.Close() }()
		sessions = redisStore
		log.Printf("Session ledger: redis")
	} else {
		sessions = guardrails.NewMemorySessionStore()
		log.Printf("Session ledger: in-memory")
	}
	engine := guardrails.NewEngine(cfg, sessions)

	// upstream LLM
	var llm LLMClient
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		client, err := anthropic.NewClient(anthropic.Config{APIKey: apiKey})
		if err != nil {
			log.Fatalf("Failed to create Anthropic client: %v", err)
		}
		llm = client
	} else {
		log.Printf("ANTHROPIC_API_KEY not set, /anthropic proxy disabled")
	}

	audit := NewAuditLogger(os.Getenv("DATABASE_URL"))
	defer audit.Shutdown()

	server := NewServer(engine, registry, llm, audit, os.Getenv("GATEWAY_JWT_SECRET"))

	// periodic expired-session sweep
	go func() {
		ticker := time.NewTicker(sessionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := engine.CleanExpiredSessions(ctx); err != nil {
					log.Printf("Session sweep failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	port := getEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: c.Handler(server.Router()),
	}

	go func() {
		log.Printf("Mercadia Gateway listening on port %s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
