package database

import (
	"context"
	"time"

	"github.com/rahpay/rahpay/internal/apierror"
	"github.com/rahpay/rahpay/model"
)

// GetSettlementReports returns the merchant's settlement run summaries in a
// date range. The reports are produced by the periodic settlement batch and
// read-only here.
func (d Datasource) GetSettlementReports(ctx context.Context, merchantID int64, from, to time.Time) ([]model.SettlementReport, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT report_id, merchant_id, txn_count, txn_amount, commission, gst, withholding_tax, merchant_amount, settlement_date, created_at
		FROM settlement_reports
		WHERE merchant_id = $1 AND settlement_date >= $2 AND settlement_date < $3
		ORDER BY settlement_date DESC
	`, merchantID, from, to)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to load settlement reports", err)
	}
	defer rows.Close()

	var reports []model.SettlementReport
	for rows.Next() {
		var r model.SettlementReport
		err := rows.Scan(&r.ReportID, &r.MerchantID, &r.TxnCount, &r.TxnAmount, &r.Commission, &r.GST, &r.WithholdingTax, &r.MerchantAmount, &r.SettlementDate, &r.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan settlement report", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read settlement reports", err)
	}
	return reports, nil
}
