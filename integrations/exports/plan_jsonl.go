package exports

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"hooliganhorde/native/silo"
)

// PlanJSONL builds a JSON Lines export with one object per plan entry,
// followed by a summary line carrying the totals and shortfall.
func PlanJSONL(plan silo.Plan) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, entry := range plan.Entries {
		payload := map[string]interface{}{
			"kind":        "entry",
			"account":     plan.Account.Hex(),
			"token":       plan.Token,
			"gameday":     entry.Gameday,
			"amount":      bigString(entry.Amount),
			"bdv":         bigString(entry.BDV),
			"horde":       bigString(entry.Horde),
			"grown_horde": bigString(entry.GrownHorde),
			"prospects":   bigString(entry.Prospects),
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	summary := map[string]interface{}{
		"kind":        "summary",
		"account":     plan.Account.Hex(),
		"token":       plan.Token,
		"gameday":     plan.Gameday,
		"target":      bigString(plan.Target),
		"shortfall":   bigString(plan.Shortfall),
		"amount":      bigString(plan.Totals.Amount),
		"bdv":         bigString(plan.Totals.BDV),
		"horde":       bigString(plan.Totals.Horde),
		"grown_horde": bigString(plan.Totals.GrownHorde),
		"prospects":   bigString(plan.Totals.Prospects),
		"digest":      "0x" + hex.EncodeToString(plan.Digest[:]),
	}
	if err := encoder.Encode(summary); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}
