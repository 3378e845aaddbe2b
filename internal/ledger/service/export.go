package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
)

func exportCSV(records []ledgerdomain.StagingRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"reference",
		"member_id",
		"season_id",
		"total_amount",
		"discount_amount",
		"final_amount",
		"currency",
		"gateway_transaction_id",
		"created_at",
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, rec := range records {
		row := []string{
			rec.Reference,
			rec.MemberID.String(),
			rec.SeasonID.String(),
			strconv.FormatInt(rec.TotalAmount, 10),
			strconv.FormatInt(rec.DiscountAmount, 10),
			strconv.FormatInt(rec.FinalAmount, 10),
			rec.Currency,
			formatStringPtr(rec.GatewayTransactionID),
			rec.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportJSON(records []ledgerdomain.StagingRecord) ([]byte, error) {
	type ExportRecord struct {
		Reference            string `json:"reference"`
		MemberID             string `json:"member_id"`
		SeasonID             string `json:"season_id"`
		TotalAmount          int64  `json:"total_amount"`
		DiscountAmount       int64  `json:"discount_amount"`
		FinalAmount          int64  `json:"final_amount"`
		Currency             string `json:"currency"`
		GatewayTransactionID string `json:"gateway_transaction_id,omitempty"`
		CreatedAt            string `json:"created_at"`
	}

	out := make([]ExportRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, ExportRecord{
			Reference:            rec.Reference,
			MemberID:             rec.MemberID.String(),
			SeasonID:             rec.SeasonID.String(),
			TotalAmount:          rec.TotalAmount,
			DiscountAmount:       rec.DiscountAmount,
			FinalAmount:          rec.FinalAmount,
			Currency:             rec.Currency,
			GatewayTransactionID: formatStringPtr(rec.GatewayTransactionID),
			CreatedAt:            rec.CreatedAt.Format(time.RFC3339),
		})
	}

	return json.MarshalIndent(out, "", "  ")
}

func formatStringPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
