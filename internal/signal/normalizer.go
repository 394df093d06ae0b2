package signal

import (
	"strings"

	"mirrortrade/internal/domain"
)

// Normalizer extracts (action, symbol) pairs from notification text. A
// message is only considered when it mentions the configured robot name;
// all other text is ignored.
//
// Recognized phrasings, with SYMBOL as the second word after the verb:
//
//	"... bought 13 TSM shares at $182.50 ..."            -> BUY TSM
//	"... sold to close 13 TSM shares at $190.10 ..."     -> SELL TSM
//	"... shorted 10 NVDA shares at $50.00 ..."           -> SHORT NVDA
//	"... covered to close 10 NVDA shares at $45.00 ..."  -> COVER NVDA
// When a symbol map is set it doubles as a whitelist: the robot's asset
// names (e.g. "ETH.X") translate to venue contract symbols (e.g. "ETHUSDT"),
// and assets outside the map are not signals.
type Normalizer struct {
	robotName string
	symbols   map[string]string
}

// NewNormalizer creates a Normalizer gated on the given robot name. An empty
// robot name matches every message. symbolMap translates the robot's asset
// names into venue symbols; nil or empty passes symbols through unmapped.
func NewNormalizer(robotName string, symbolMap map[string]string) *Normalizer {
	symbols := make(map[string]string, len(symbolMap))
	for asset, contract := range symbolMap {
		symbols[strings.ToUpper(asset)] = strings.ToUpper(contract)
	}
	return &Normalizer{
		robotName: strings.ToLower(robotName),
		symbols:   symbols,
	}
}

// Parse extracts a signal from the message body. The returned bool is false
// when the body does not mention the robot or matches no known phrasing.
func (n *Normalizer) Parse(body string) (domain.Action, string, bool) {
	// Collapse newlines and repeated whitespace so the word walk below is
	// stable regardless of how the mail client wrapped the text.
	cleaned := strings.Join(strings.Fields(body), " ")
	if n.robotName != "" && !strings.Contains(strings.ToLower(cleaned), n.robotName) {
		return "", "", false
	}

	message := strings.ToLower(cleaned)
	words := strings.Split(message, " ")

	switch {
	case strings.Contains(message, "bought") && strings.Contains(message, " at "):
		if sym, ok := n.resolve(words, "bought"); ok {
			return domain.ActionBuy, sym, true
		}
	case strings.Contains(message, "sold to close") && strings.Contains(message, " at "):
		if sym, ok := n.resolve(words, "close"); ok {
			return domain.ActionSell, sym, true
		}
	case strings.Contains(message, "shorted") && strings.Contains(message, " at "):
		if sym, ok := n.resolve(words, "shorted"); ok {
			return domain.ActionShort, sym, true
		}
	case strings.Contains(message, "covered to close") && strings.Contains(message, " at "):
		if sym, ok := n.resolve(words, "close"); ok {
			return domain.ActionCover, sym, true
		}
	}

	return "", "", false
}

// resolve extracts the symbol after marker and applies the symbol map. With
// a map configured, an asset outside it is not a tradable signal.
func (n *Normalizer) resolve(words []string, marker string) (string, bool) {
	sym, ok := symbolAfter(words, marker)
	if !ok {
		return "", false
	}
	if len(n.symbols) == 0 {
		return sym, true
	}
	contract, ok := n.symbols[sym]
	return contract, ok
}

// symbolAfter returns the word two positions after the first occurrence of
// marker, uppercased. The word in between is the share quantity, which the
// engine re-derives from live account state and ignores here.
func symbolAfter(words []string, marker string) (string, bool) {
	for i, word := range words {
		if word == marker && i+2 < len(words) {
			return strings.ToUpper(words[i+2]), true
		}
	}
	return "", false
}
