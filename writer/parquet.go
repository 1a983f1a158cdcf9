package writer

import (
	"bytes"
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	"github.com/saleyn/sdb/logger"
	"github.com/saleyn/sdb/models"
)

// CandleRow is the parquet schema of an exported candle.
type CandleRow struct {
	Exchange   string  `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol     string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Instrument string  `parquet:"name=instrument, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date       string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Resolution int32   `parquet:"name=resolution, type=INT32"`
	StartTime  int32   `parquet:"name=start_time, type=INT32"`
	Open       float64 `parquet:"name=open, type=DOUBLE"`
	High       float64 `parquet:"name=high, type=DOUBLE"`
	Low        float64 `parquet:"name=low, type=DOUBLE"`
	Close      float64 `parquet:"name=close, type=DOUBLE"`
	BuyVol     int64   `parquet:"name=buy_vol, type=INT64"`
	SellVol    int64   `parquet:"name=sell_vol, type=INT64"`
}

// memoryFileWriter implements ParquetFile interface for in-memory writing
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// ExportCandles writes the candle index of a file to a parquet file for
// analytics. Candles with no activity are skipped.
func ExportCandles(path string, hdr *models.Header, candles *models.CandlesMeta, compression string) error {
	log := logger.GetLogger().WithComponent("parquet_export").WithFields(logger.Fields{
		"file":   path,
		"symbol": hdr.Symbol,
	})

	fw := newMemoryFileWriter()
	pw, err := pqwriter.NewParquetWriter(fw, new(CandleRow), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	date := hdr.Date.Format("2006-01-02")
	rows := 0
	for i := range candles.Headers {
		ch := &candles.Headers[i]
		for j := range ch.Candles {
			c := &ch.Candles[j]
			if c.DataOffset == 0 && c.Volume() == 0 && c.Open == 0 {
				continue
			}
			row := CandleRow{
				Exchange:   hdr.Exchange,
				Symbol:     hdr.Symbol,
				Instrument: hdr.Instrument,
				Date:       date,
				Resolution: int32(ch.Resolution),
				StartTime:  int32(ch.CandleToTime(j)),
				Open:       hdr.StepsToPx(c.Open),
				High:       hdr.StepsToPx(c.High),
				Low:        hdr.StepsToPx(c.Low),
				Close:      hdr.StepsToPx(c.Close),
				BuyVol:     int64(c.BuyVol),
				SellVol:    int64(c.SellVol),
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				return fmt.Errorf("failed to write parquet record: %w", err)
			}
			rows++
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	if err := os.WriteFile(path, fw.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	log.WithFields(logger.Fields{"rows": rows, "file_size": len(fw.Bytes())}).Info("candles exported")
	return nil
}
