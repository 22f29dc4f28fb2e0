package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pratik-mahalle/wiman/internal/auth"
)

// STKResult describes a Daraja STK push callback for tests
type STKResult struct {
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Receipt           string
	Amount            float64
	Phone             int64
}

// STKCallback renders r in the wire format Daraja posts to the callback URL
func STKCallback(r STKResult) []byte {
	cb := map[string]interface{}{
		"MerchantRequestID": "29115-34620561-1",
		"CheckoutRequestID": r.CheckoutRequestID,
		"ResultCode":        r.ResultCode,
		"ResultDesc":        r.ResultDesc,
	}
	if r.ResultDesc == "" {
		cb["ResultDesc"] = "The service request is processed successfully."
	}
	if r.ResultCode == 0 {
		cb["CallbackMetadata"] = map[string]interface{}{
			"Item": []map[string]interface{}{
				{"Name": "Amount", "Value": r.Amount},
				{"Name": "MpesaReceiptNumber", "Value": r.Receipt},
				{"Name": "Balance"},
				{"Name": "TransactionDate", "Value": 20240101120000},
				{"Name": "PhoneNumber", "Value": r.Phone},
			},
		}
	}
	out, _ := json.Marshal(map[string]interface{}{
		"Body": map[string]interface{}{"stkCallback": cb},
	})
	return out
}

// Token mints a bearer token for tests
func Token(t *testing.T, secret string, userID int64, role string) string {
	t.Helper()
	tok, err := auth.Mint(auth.Identity{UserID: userID, Email: "user@example.com", Role: role}, secret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to mint token: %v", err)
	}
	return tok
}
