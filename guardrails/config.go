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

// Package guardrails enforces the gateway's usage policy: session limits,
// content rules, tool authorization and system prompt injection. Every
// chat request passes through the engine before reaching the LLM.
package guardrails

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Severity of a content rule.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityBlock   Severity = "block"
)

// ContentRule describes one named policy rule. Rules are informational
// metadata surfaced through the management API; enforcement happens via
// the keyword and topic lists in Limits.
type ContentRule struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Severity    Severity `yaml:"severity" json:"severity"`
}

// Limits holds the numeric and keyword limits applied per request.
type Limits struct {
	MaxTokens                 int      `yaml:"maxTokens" json:"maxTokens"`
	MaxMessagesPerSession     int      `yaml:"maxMessagesPerSession" json:"maxMessagesPerSession"`
	MaxSessionDurationMinutes int      `yaml:"maxSessionDurationMinutes" json:"maxSessionDurationMinutes"`
	AllowedTopics             []string `yaml:"allowedTopics" json:"allowedTopics"`
	BlockedKeywords           []string `yaml:"blockedKeywords" json:"blockedKeywords"`
	RequiredTools             bool     `yaml:"requiredTools" json:"requiredTools"`
}

// Responses are the canned client-facing messages per rejection kind.
type Responses struct {
	OutOfScope   string `yaml:"outOfScope" json:"outOfScope"`
	ToolRequired string `yaml:"toolRequired" json:"toolRequired"`
	Blocked      string `yaml:"blocked" json:"blocked"`
	Limit        string `yaml:"limit" json:"limit"`
}

// Config is the process-lifetime guardrail policy. It is treated as
// immutable after startup.
type Config struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	StrictMode        bool          `yaml:"strictMode" json:"strictMode"`
	SystemPromptParts []string      `yaml:"systemPromptParts" json:"systemPromptParts"`
	ContentRules      []ContentRule `yaml:"contentRules" json:"contentRules"`
	Limits            Limits        `yaml:"limits" json:"limits"`
	AllowedTools      []string      `yaml:"allowedTools" json:"allowedTools"`
	Responses         Responses     `yaml:"responses" json:"responses"`
}

// DefaultConfig returns the built-in policy for the commerce assistant.
func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		StrictMode: true,
		SystemPromptParts: []string{
			"Sos el asistente virtual de la tienda. Respondé siempre en español, de forma breve y cordial.",
			"Solo podés responder consultas sobre productos, precios, clientes y pedidos de la tienda. Para cualquier otro tema, indicá amablemente que no podés ayudar.",
			"Cuando necesites datos de la tienda, usá las herramientas disponibles en lugar de inventar información.",
		},
		ContentRules: []ContentRule{
			{Name: "business_scope", Description: "La conversación debe tratar sobre la tienda", Enabled: true, Severity: SeverityError},
			{Name: "blocked_keywords", Description: "Palabras prohibidas en mensajes de usuario", Enabled: true, Severity: SeverityBlock},
			{Name: "tool_usage", Description: "Las herramientas deben estar autorizadas", Enabled: true, Severity: SeverityBlock},
		},
		Limits: Limits{
			MaxTokens:                 1024,
			MaxMessagesPerSession:     20,
			MaxSessionDurationMinutes: 30,
			AllowedTopics: []string{
				"producto", "productos", "precio", "precios", "stock",
				"cliente", "clientes", "pedido", "pedidos", "orden",
				"compra", "venta", "catálogo", "catalogo", "menú", "menu",
				"tienda", "envío", "envio", "pago",
			},
			BlockedKeywords: []string{
				"hack", "exploit", "contraseña", "password", "api key",
				"tarjeta de crédito", "ignora tus instrucciones",
				"ignore previous instructions",
			},
			RequiredTools: false,
		},
		AllowedTools: []string{
			"get_customers",
			"search_customers",
			"get_customer_by_id",
			"get_products",
			"search_products",
			"get_product_by_id",
			"get_orders",
			"search_database",
		},
		Responses: Responses{
			OutOfScope:   "Solo puedo ayudarte con consultas sobre productos, clientes y pedidos de la tienda. ¿En qué te puedo ayudar?",
			ToolRequired: "Para esa consulta necesito usar las herramientas de la tienda. Reformulá tu pregunta indicando qué dato necesitás.",
			Blocked:      "Tu mensaje contiene contenido que no puedo procesar. Por favor reformulalo.",
			Limit:        "Alcanzaste el límite de esta conversación. Iniciá una nueva sesión para seguir consultando.",
		},
	}
}

// LoadConfig returns the default policy, overlaid with the YAML file at
// path when one is given. Fields absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guardrail config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse guardrail config: %w", err)
	}
	return cfg, nil
}

// IsToolAllowed reports whether the named tool is in the allow-list.
func (c *Config) IsToolAllowed(name string) bool {
	for _, allowed := range c.AllowedTools {
		if allowed == name {
			return true
		}
	}
	return false
}
