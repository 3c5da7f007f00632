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
	"strings"
	"time"

	"mercadia/gateway/gateway/llm/anthropic"
	"mercadia/gateway/intent"
	"mercadia/gateway/shared/logger"
	"mercadia/gateway/tools"
)

// Phrases that signal the model could not answer from its own knowledge.
// Strong phrases trigger a rewrite on their own; weak phrases only count
// when the whole answer is short.
var (
	strongInsufficiencyPhrases = []string{
		"no tengo acceso",
		"no puedo acceder",
		"no puedo mostrar",
		"no puedo proporcionar",
		"no puedo consultar",
		"no dispongo de acceso",
		"i cannot access",
		"i don't have access",
	}

	weakInsufficiencyPhrases = []string{
		"no tengo información",
		"no tengo informacion",
		"no cuento con",
		"no dispongo de",
		"no estoy seguro",
		"no me es posible",
		"lo siento, no puedo",
	}
)

const weakPhraseMaxAnswerLength = 300

// ProcessedResponse is the LLM response plus the gateway's annotations,
// serialized under a single `_guardrails` key.
type ProcessedResponse struct {
	*anthropic.MessagesResponse
	Guardrails map[string]interface{} `json:"_guardrails"`
}

// Processor rewrites insufficient LLM answers with live tool data. It
// never fails: any internal error leaves the original answer in place.
type Processor struct {
	classifier *intent.Classifier
	registry   *tools.Registry
	metrics    *Metrics
	log        *logger.Logger
}

// NewProcessor builds the post-processing stage.
func NewProcessor(classifier *intent.Classifier, registry *tools.Registry, metrics *Metrics) *Processor {
	return &Processor{
		classifier: classifier,
		registry:   registry,
		metrics:    metrics,
		log:        logger.New("postprocess"),
	}
}

// answerIsInsufficient decides whether the answer text admits it lacks
// the requested data.
func answerIsInsufficient(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, phrase := range strongInsufficiencyPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	if len([]rune(answer)) >= weakPhraseMaxAnswerLength {
		return false
	}
	for _, phrase := range weakInsufficiencyPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// Process inspects the LLM answer against the intents detected in the last
// user message and rewrites it with tool output when the answer signals
// missing information.
func (p *Processor) Process(ctx context.Context, resp *anthropic.MessagesResponse, messages []anthropic.Message, sessionID string) *ProcessedResponse {
	out := &ProcessedResponse{MessagesResponse: resp}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error(sessionID, "", "post-processing panicked, returning original answer", map[string]interface{}{
				"panic": r,
			})
			out.Guardrails = map[string]interface{}{
				"sessionId":          sessionID,
				"automaticExecution": false,
				"error":              "post_processing_failed",
			}
		}
	}()

	lastUser := (&anthropic.MessagesRequest{Messages: messages}).LastUserText()
	intents := p.classifier.Classify(lastUser)

	if len(intents) == 0 || !answerIsInsufficient(resp.FirstText()) {
		out.Guardrails = map[string]interface{}{
			"sessionId":          sessionID,
			"toolsDetected":      intentNames(intents),
			"automaticExecution": false,
		}
		return out
	}

	for _, detected := range intents {
		res, err := p.registry.Call(ctx, detected.ToolName, detected.Parameters)
		if err != nil {
			p.metrics.recordToolCall(detected.ToolName, false)
			p.log.Warn(sessionID, "", "automatic tool execution failed", map[string]interface{}{
				"tool":  detected.ToolName,
				"error": err.Error(),
			})
			continue
		}
		p.metrics.recordToolCall(detected.ToolName, true)
		p.metrics.recordRewrite()

		resp.Content = []anthropic.ContentBlock{{
			Type: "text",
			Text: tools.FormatResult(detected.ToolName, res),
		}}
		out.Guardrails = map[string]interface{}{
			"sessionId":          sessionID,
			"processed":          true,
			"timestamp":          time.Now().UTC().Format(time.RFC3339),
			"toolsUsed":          []string{detected.ToolName},
			"automaticExecution": true,
		}
		return out
	}

	// every detected tool failed, keep the original answer
	out.Guardrails = map[string]interface{}{
		"sessionId":          sessionID,
		"toolsDetected":      intentNames(intents),
		"automaticExecution": false,
	}
	return out
}

func intentNames(intents []intent.DetectedIntent) []string {
	names := make([]string, 0, len(intents))
	for _, it := range intents {
		names = append(names, it.ToolName)
	}
	return names
}
