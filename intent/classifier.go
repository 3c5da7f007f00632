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

// Package intent maps free-text chat messages onto the gateway's tool
// catalog. Detection is rule based: ordered keyword and regex matchers,
// each deciding between a general listing tool and a specific search tool
// for its entity kind. The matchers are pure functions of the input text.
package intent

import "strings"

// DetectedIntent pairs a tool name with the parameters extracted from the
// message. Intents are ephemeral, produced per invocation and never cached.
type DetectedIntent struct {
	ToolName   string                 `json:"toolName"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Matcher inspects a lower-cased message and reports at most one intent.
type Matcher interface {
	Match(message string) (DetectedIntent, bool)
}

// MatcherFunc adapts a plain function to the Matcher interface.
type MatcherFunc func(message string) (DetectedIntent, bool)

func (f MatcherFunc) Match(message string) (DetectedIntent, bool) {
	return f(message)
}

const maxIntents = 3

// Classifier runs an ordered list of matchers over a message. Each matcher
// contributes at most one intent and the overall result is capped at three.
type Classifier struct {
	matchers []Matcher
}

// NewClassifier returns the default classifier: products first, then
// customers, then orders.
func NewClassifier() *Classifier {
	return &Classifier{
		matchers: []Matcher{
			MatcherFunc(matchProductIntent),
			MatcherFunc(matchCustomerIntent),
			MatcherFunc(matchOrderIntent),
		},
	}
}

// NewClassifierWith builds a classifier from an explicit matcher list.
func NewClassifierWith(matchers ...Matcher) *Classifier {
	return &Classifier{matchers: matchers}
}

// Classify returns the detected intents in matcher order.
func (c *Classifier) Classify(message string) []DetectedIntent {
	lowered := strings.ToLower(strings.TrimSpace(message))
	if lowered == "" {
		return nil
	}

	var intents []DetectedIntent
	for _, m := range c.matchers {
		if len(intents) >= maxIntents {
			break
		}
		if intent, ok := m.Match(lowered); ok {
			intents = append(intents, intent)
		}
	}
	return intents
}

// matchProductIntent picks search_products when a concrete term can be
// extracted from the message and get_products otherwise.
func matchProductIntent(message string) (DetectedIntent, bool) {
	if !shouldUseProductTools(message) {
		return DetectedIntent{}, false
	}
	if term, ok := ExtractProductSearchTerm(message); ok {
		return DetectedIntent{
			ToolName:   "search_products",
			Parameters: map[string]interface{}{"query": term},
		}, true
	}
	return DetectedIntent{ToolName: "get_products", Parameters: map[string]interface{}{}}, true
}

func matchCustomerIntent(message string) (DetectedIntent, bool) {
	if !shouldUseCustomerTools(message) {
		return DetectedIntent{}, false
	}
	if term, ok := ExtractCustomerSearchTerm(message); ok {
		return DetectedIntent{
			ToolName:   "search_customers",
			Parameters: map[string]interface{}{"query": term},
		}, true
	}
	return DetectedIntent{ToolName: "get_customers", Parameters: map[string]interface{}{}}, true
}

func matchOrderIntent(message string) (DetectedIntent, bool) {
	if !shouldUseOrderTools(message) {
		return DetectedIntent{}, false
	}
	return DetectedIntent{
		ToolName:   "get_orders",
		Parameters: ExtractOrderSearchParams(message),
	}, true
}
