package molt

import (
	"math/big"
	"strings"

	"hermitbase/internal/ledger"
)

// ExtractTokenID finds the ERC-721 Transfer event in logs and returns the
// token id from its fourth topic in decimal. It returns "" when none matches.
func ExtractTokenID(logs []ledger.EventLog) string {
	for _, l := range logs {
		if len(l.Topics) < 4 || !strings.EqualFold(l.Topics[0], ledger.TransferTopic) {
			continue
		}
		id, ok := new(big.Int).SetString(strings.TrimPrefix(strings.ToLower(l.Topics[3]), "0x"), 16)
		if !ok {
			continue
		}
		return id.String()
	}
	return ""
}
