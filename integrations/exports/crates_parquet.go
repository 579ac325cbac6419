package exports

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"hooliganhorde/core/rewards"
	"hooliganhorde/native/silo"
)

type crateRow struct {
	Account        string `parquet:"name=account, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token          string `parquet:"name=token, type=BYTE_ARRAY, convertedtype=UTF8"`
	Gameday        int64  `parquet:"name=gameday, type=INT64"`
	Amount         string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	BDV            string `parquet:"name=bdv, type=BYTE_ARRAY, convertedtype=UTF8"`
	Horde          string `parquet:"name=horde, type=BYTE_ARRAY, convertedtype=UTF8"`
	GrownHorde     string `parquet:"name=grown_horde, type=BYTE_ARRAY, convertedtype=UTF8"`
	Prospects      string `parquet:"name=prospects, type=BYTE_ARRAY, convertedtype=UTF8"`
	CurrentGameday int64  `parquet:"name=current_gameday, type=INT64"`
}

// CratesParquet writes every crate of the supplied ledgers, valued at the
// current gameday, as a snappy-compressed parquet file and returns it with
// its checksum. Amounts are decimal strings in raw units.
func CratesParquet(ledgers []*silo.Ledger, model *rewards.Model, current uint64) ([]byte, string, error) {
	if model == nil {
		return nil, "", fmt.Errorf("exports: reward model required")
	}
	buffer := &bytes.Buffer{}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(buffer), new(crateRow), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, ledger := range ledgers {
		for _, crate := range ledger.Crates() {
			grown, err := model.GrownHorde(crate, current)
			if err != nil {
				pw.WriteStop()
				return nil, "", err
			}
			row := &crateRow{
				Account:        ledger.Account().Hex(),
				Token:          ledger.Token().Symbol,
				Gameday:        int64(crate.Gameday),
				Amount:         bigString(crate.Amount),
				BDV:            bigString(crate.BDV),
				Horde:          bigString(crate.Horde),
				GrownHorde:     bigString(grown),
				Prospects:      bigString(crate.Prospects),
				CurrentGameday: int64(current),
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				return nil, "", fmt.Errorf("exports: write parquet row: %w", err)
			}
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: finalize parquet: %w", err)
	}
	return checksummed(buffer.Bytes())
}
