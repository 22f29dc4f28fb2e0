package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
)

type stkCallbackEnvelope struct {
	Body struct {
		STKCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string      `json:"MerchantRequestID"`
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	ResultCode        json.Number `json:"ResultCode"`
	ResultDesc        string      `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []struct {
			Name  string      `json:"Name"`
			Value interface{} `json:"Value"`
		} `json:"Item"`
	} `json:"CallbackMetadata"`
}

// ParseSTKCallback decodes a Daraja STK push result notification
func ParseSTKCallback(payload []byte) (*payment.Callback, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var env stkCallbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, errors.MalformedCallback(fmt.Errorf("invalid JSON: %w", err))
	}

	cb := env.Body.STKCallback
	if cb == nil {
		return nil, errors.MalformedCallback(fmt.Errorf("missing Body.stkCallback"))
	}
	if cb.CheckoutRequestID == "" {
		return nil, errors.MalformedCallback(fmt.Errorf("missing CheckoutRequestID"))
	}
	if cb.ResultCode == "" {
		return nil, errors.MalformedCallback(fmt.Errorf("missing ResultCode"))
	}
	code, err := strconv.Atoi(cb.ResultCode.String())
	if err != nil {
		return nil, errors.MalformedCallback(fmt.Errorf("invalid ResultCode %q", cb.ResultCode))
	}

	result := &payment.Callback{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        code,
		ResultDesc:        cb.ResultDesc,
	}
	if code != 0 {
		return result, nil
	}

	if cb.CallbackMetadata == nil {
		return nil, errors.MalformedCallback(fmt.Errorf("successful callback without CallbackMetadata"))
	}
	for _, item := range cb.CallbackMetadata.Item {
		value := metadataString(item.Value)
		switch item.Name {
		case "Amount":
			amount, err := decimal.NewFromString(value)
			if err != nil {
				return nil, errors.MalformedCallback(fmt.Errorf("invalid Amount %q", value))
			}
			result.Amount = amount
		case "MpesaReceiptNumber":
			result.ReceiptNumber = value
		case "PhoneNumber":
			result.PhoneNumber = value
		case "TransactionDate":
			result.TransactionDate = value
		}
	}

	switch {
	case result.ReceiptNumber == "":
		return nil, errors.MalformedCallback(fmt.Errorf("missing MpesaReceiptNumber"))
	case result.PhoneNumber == "":
		return nil, errors.MalformedCallback(fmt.Errorf("missing PhoneNumber"))
	case !result.Amount.IsPositive():
		return nil, errors.MalformedCallback(fmt.Errorf("missing Amount"))
	}

	return result, nil
}

func metadataString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
