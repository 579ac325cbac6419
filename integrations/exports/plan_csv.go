package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"math/big"

	"hooliganhorde/native/silo"
)

var planHeader = []string{"account", "token", "gameday", "amount", "bdv", "horde", "grown_horde", "prospects"}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// PlanCSV builds a CSV export of the plan entries in raw units and returns
// the serialised data alongside a SHA-256 checksum of the payload.
func PlanCSV(plan silo.Plan) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(planHeader); err != nil {
		return nil, "", err
	}
	for _, entry := range plan.Entries {
		record := []string{
			plan.Account.Hex(),
			plan.Token,
			fmt.Sprintf("%d", entry.Gameday),
			bigString(entry.Amount),
			bigString(entry.BDV),
			bigString(entry.Horde),
			bigString(entry.GrownHorde),
			bigString(entry.Prospects),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}

func checksummed(data []byte) ([]byte, string, error) {
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}
