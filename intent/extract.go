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

package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Keyword tables. All matching happens on the lower-cased message, so the
// lists carry both accented and unaccented spellings where users type both.
var (
	productKeywords = []string{
		"producto", "productos", "catálogo", "catalogo", "menú", "menu",
		"stock", "artículo", "articulo", "artículos", "articulos",
	}

	productSearchIntentWords = []string{
		"precio", "precios", "cuesta", "cuestan", "vale", "valen",
		"cuánto", "cuanto", "necesito", "quiero", "busco", "buscando",
		"tenés", "tenes", "tienen", "hay", "venden", "disponible", "disponibles",
	}

	knownProductNames = []string{
		"pizza", "empanada", "empanadas", "lomito", "lomitos",
		"hamburguesa", "hamburguesas", "milanesa", "milanesas",
		"papas", "bebida", "bebidas", "gaseosa", "cerveza",
		"postre", "helado", "pasta",
	}

	customerKeywords = []string{
		"cliente", "clientes", "comprador", "compradores",
	}

	orderKeywords = []string{
		"pedido", "pedidos", "orden", "órdenes", "ordenes",
		"compra", "compras", "venta", "ventas",
	}

	termStopwords = map[string]bool{
		"que": true, "qué": true, "como": true, "cómo": true,
		"para": true, "por": true, "con": true, "sin": true,
		"los": true, "las": true, "una": true, "uno": true, "unos": true,
		"algo": true, "esto": true, "eso": true, "aquí": true, "ahí": true,
		"más": true, "mas": true, "todo": true, "todos": true, "todas": true,
	}
)

// Ordered extraction patterns for product terms. The first pattern whose
// capture survives the validity check wins.
var productTermPatterns = []*regexp.Regexp{
	// price query: "cuánto cuesta la pizza", "precio de las empanadas"
	regexp.MustCompile(`(?:precio|cuánto cuesta|cuanto cuesta|cuánto vale|cuanto vale|cuánto sale|cuanto sale)(?:\s+(?:de|del|de la|de las|de los|el|la|los|las))?\s+([a-záéíóúñü]+(?:\s+[a-záéíóúñü]+)?)`),
	// info query: "información sobre el lomito"
	regexp.MustCompile(`(?:información|informacion|info|detalles?)(?:\s+(?:sobre|de|del|de la))?\s+(?:el\s+|la\s+|los\s+|las\s+)?([a-záéíóúñü]+(?:\s+[a-záéíóúñü]+)?)`),
	// looking-for query: "busco milanesas", "necesito una pizza grande"
	regexp.MustCompile(`(?:busco|estoy buscando|necesito|quiero)\s+(?:una?\s+|unos?\s+|el\s+|la\s+)?([a-záéíóúñü]+(?:\s+[a-záéíóúñü]+)?)`),
	// availability query: "¿tenés pizza disponible?", "hay empanadas?"
	regexp.MustCompile(`(?:tenés|tenes|tienen|hay|venden)\s+([a-záéíóúñü]+(?:\s+[a-záéíóúñü]+)?)`),
}

var customerTermPatterns = []*regexp.Regexp{
	// "cliente llamado juan", "clientes de nombre maría lópez"
	regexp.MustCompile(`clientes?\s+(?:llamados?\s+|llamadas?\s+|de nombre\s+|con nombre\s+)([a-záéíóúñü]+(?:\s+[a-záéíóúñü]+)?)`),
	// "buscá al cliente pérez", "buscar cliente gómez"
	regexp.MustCompile(`busc(?:a|á|ar|ame|áme)\s+(?:a\s+|al\s+)?clientes?\s+([a-záéíóúñü]+(?:\s+[a-záéíóúñü]+)?)`),
	// bare email address anywhere in the message
	regexp.MustCompile(`([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})`),
}

var (
	orderStatusPatterns = []struct {
		re     *regexp.Regexp
		status string
	}{
		{regexp.MustCompile(`pendientes?`), "pending"},
		{regexp.MustCompile(`entregad[oa]s?`), "delivered"},
		{regexp.MustCompile(`completad[oa]s?`), "completed"},
		{regexp.MustCompile(`cancelad[oa]s?`), "cancelled"},
	}

	isoDatePattern   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	slashDatePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
)

func containsAny(message string, words []string) bool {
	for _, w := range words {
		if strings.Contains(message, w) {
			return true
		}
	}
	return false
}

func hasProductSearchIntent(message string) bool {
	return containsAny(message, productSearchIntentWords)
}

func knownProductIn(message string) (string, bool) {
	for _, name := range knownProductNames {
		if strings.Contains(message, name) {
			return name, true
		}
	}
	return "", false
}

func shouldUseProductTools(message string) bool {
	if containsAny(message, productKeywords) {
		return true
	}
	if _, ok := knownProductIn(message); ok && hasProductSearchIntent(message) {
		return true
	}
	return false
}

func shouldUseCustomerTools(message string) bool {
	return containsAny(message, customerKeywords)
}

func shouldUseOrderTools(message string) bool {
	return containsAny(message, orderKeywords)
}

// isValidTerm filters out captures that are stopwords, too short, or carry
// no letters at all.
func isValidTerm(term string) bool {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < 3 {
		return false
	}
	if termStopwords[term] {
		return false
	}
	hasLetter := false
	for _, r := range term {
		if (r >= 'a' && r <= 'z') || strings.ContainsRune("áéíóúñü", r) {
			hasLetter = true
			break
		}
	}
	return hasLetter
}

// ExtractProductSearchTerm pulls a candidate product term out of a
// lower-cased message. A term is only produced when the message carries
// search intent; a known product name wins over the regex patterns.
func ExtractProductSearchTerm(message string) (string, bool) {
	if !hasProductSearchIntent(message) {
		return "", false
	}
	if name, ok := knownProductIn(message); ok {
		return name, true
	}
	for _, re := range productTermPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		term := strings.TrimSpace(m[1])
		if isValidTerm(term) {
			return term, true
		}
	}
	return "", false
}

// ExtractCustomerSearchTerm matches the customer patterns in order and
// returns the first valid capture.
func ExtractCustomerSearchTerm(message string) (string, bool) {
	for _, re := range customerTermPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		term := strings.TrimSpace(m[1])
		if isValidTerm(term) {
			return term, true
		}
	}
	return "", false
}

// ExtractOrderSearchParams recognizes status words and date tokens. Dates
// in DD/MM/YYYY form are normalized to YYYY-MM-DD.
func ExtractOrderSearchParams(message string) map[string]interface{} {
	params := map[string]interface{}{}
	for _, p := range orderStatusPatterns {
		if p.re.MatchString(message) {
			params["status"] = p.status
			break
		}
	}
	if m := isoDatePattern.FindStringSubmatch(message); m != nil {
		params["date"] = m[1]
	} else if m := slashDatePattern.FindStringSubmatch(message); m != nil {
		params["date"] = FormatDate(m[0])
	}
	return params
}

// FormatDate normalizes DD/MM/YYYY dates to YYYY-MM-DD. Already normalized
// input (or anything unrecognized) is returned unchanged, so the function
// is idempotent.
func FormatDate(date string) string {
	m := slashDatePattern.FindStringSubmatch(strings.TrimSpace(date))
	if m == nil {
		return date
	}
	day, month := m[1], m[2]
	if len(day) == 1 {
		day = "0" + day
	}
	if len(month) == 1 {
		month = "0" + month
	}
	return fmt.Sprintf("%s-%s-%s", m[3], month, day)
}
