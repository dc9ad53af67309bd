package handler

import (
	"time"

	"cashdesk/internal/deposit/models"
	id "cashdesk/pkg/domain"
)

// DepositResponse is returned by POST /deposits.
type DepositResponse struct {
	Status        string `json:"status"`
	TransactionID int64  `json:"transaction_id"`
	Amount        string `json:"amount"`
	NewBalance    string `json:"new_balance"`
	Timestamp     string `json:"timestamp"`
	ReceiptNumber string `json:"receipt_number"`
}

// DepositViewResponse is returned by GET /deposits/{transactionId}.
type DepositViewResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Channel       string `json:"channel"`
	LocationID    string `json:"location_id"`
	Timestamp     string `json:"timestamp"`
	ReceiptNumber string `json:"receipt_number"`
}

func FromReceipt(r *models.Receipt) DepositResponse {
	return DepositResponse{
		Status:        string(r.Status),
		TransactionID: int64(r.TransactionID),
		Amount:        id.FormatMoney(r.Amount),
		NewBalance:    id.FormatMoney(r.NewBalance),
		Timestamp:     r.Timestamp.UTC().Format(time.RFC3339Nano),
		ReceiptNumber: r.ReceiptNumber,
	}
}

func FromView(v *models.DepositView) DepositViewResponse {
	return DepositViewResponse{
		TransactionID: int64(v.TransactionID),
		Status:        string(v.Status),
		Amount:        id.FormatMoney(v.Amount),
		Channel:       string(v.Channel),
		LocationID:    v.LocationID,
		Timestamp:     v.Timestamp.UTC().Format(time.RFC3339Nano),
		ReceiptNumber: v.ReceiptNumber,
	}
}
