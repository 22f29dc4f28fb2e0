package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pratik-mahalle/wiman/internal/config"
	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/metrics"
)

const (
	mpesaGatewayName    = "mpesa"
	mpesaTokenPath      = "/oauth/v1/generate?grant_type=client_credentials"
	mpesaSTKPushPath    = "/mpesa/stkpush/v1/processrequest"
	mpesaTimestampFmt   = "20060102150405"
	mpesaTransaction    = "CustomerPayBillOnline"
	mpesaAccountRef     = "WIMAN"
	mpesaTokenEarlyBy   = time.Minute
	maxGatewayBodyBytes = 1 << 20
)

// Daraja timestamps are East Africa Time
var eat = time.FixedZone("EAT", 3*60*60)

// MpesaGateway implements payment.Gateway on the Safaricom Daraja STK push API
type MpesaGateway struct {
	cfg    config.MpesaConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	logger *logger.Logger
	now    func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type mpesaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// stkRejectedError is a business rejection of one STK push. It does not count
// against the circuit breaker and retrying the same request will not help.
type stkRejectedError struct {
	Status  int
	Code    string
	Message string
}

func (e *stkRejectedError) Error() string {
	return fmt.Sprintf("STK push rejected (status %d, code %q): %s", e.Status, e.Code, e.Message)
}

// NewMpesaGateway creates an STK push client guarded by a circuit breaker
func NewMpesaGateway(cfg config.MpesaConfig, httpClient *http.Client, log *logger.Logger) *MpesaGateway {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	g := &MpesaGateway{
		cfg:    cfg,
		client: httpClient,
		logger: log.Component("mpesa"),
		now:    time.Now,
	}

	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mpesa-stk",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		// A rejected request proves the gateway is up
		IsSuccessful: func(err error) bool {
			var rejected *stkRejectedError
			return err == nil || stderrors.As(err, &rejected)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return g
}

// Name implements payment.Gateway
func (g *MpesaGateway) Name() string { return mpesaGatewayName }

// Initiate sends an STK push prompt to the customer's phone
func (g *MpesaGateway) Initiate(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResponse, error) {
	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.stkPush(ctx, req)
	})
	var rejected *stkRejectedError
	if stderrors.As(err, &rejected) {
		metrics.RecordGatewayRequest(mpesaGatewayName, "rejected")
		g.logger.WithFields(map[string]interface{}{
			"phone":     maskPhone(req.PhoneNumber),
			"reference": req.Reference,
			"code":      rejected.Code,
		}).Warn("STK push rejected: " + rejected.Message)
		return nil, errors.ValidationError("Payment request rejected: "+rejected.Message, map[string]string{
			"gateway_code": rejected.Code,
		})
	}
	if err != nil {
		metrics.RecordGatewayRequest(mpesaGatewayName, "error")
		g.logger.WithFields(map[string]interface{}{
			"phone":     maskPhone(req.PhoneNumber),
			"reference": req.Reference,
		}).ErrorWithErr(err, "STK push failed")
		return nil, errors.GatewayUnavailable(err)
	}

	metrics.RecordGatewayRequest(mpesaGatewayName, "ok")
	return result.(*payment.ChargeResponse), nil
}

func (g *MpesaGateway) stkPush(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResponse, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := g.now().In(eat).Format(mpesaTimestampFmt)
	desc := req.Description
	if desc == "" {
		desc = "WIMAN subscription"
	}

	body := stkPushRequest{
		BusinessShortCode: g.cfg.ShortCode,
		Password:          STKPassword(g.cfg.ShortCode, g.cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   mpesaTransaction,
		Amount:            req.Amount.Ceil().IntPart(),
		PartyA:            req.PhoneNumber,
		PartyB:            g.cfg.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       g.callbackURL(),
		AccountReference:  mpesaAccountRef,
		TransactionDesc:   desc,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode STK push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+mpesaSTKPushPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create STK push request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	var resp stkPushResponse
	status, err := g.do(httpReq, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		g.invalidateToken()
	}
	if status != http.StatusOK || resp.ResponseCode != "0" {
		msg := firstNonEmpty(resp.ErrorMessage, resp.ResponseDescription)
		code := firstNonEmpty(resp.ResponseCode, resp.ErrorCode)
		// 400 and a non-zero ResponseCode are Daraja refusing this request, e.g. an invalid MSISDN
		if status == http.StatusBadRequest || status == http.StatusOK {
			return nil, &stkRejectedError{Status: status, Code: code, Message: msg}
		}
		return nil, fmt.Errorf("STK push failed (status %d, code %q): %s", status, code, msg)
	}

	g.logger.WithFields(map[string]interface{}{
		"checkout_request_id": resp.CheckoutRequestID,
		"reference":           req.Reference,
	}).Info("STK push accepted")

	return &payment.ChargeResponse{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// accessToken returns a cached OAuth token, fetching a new one shortly before expiry
func (g *MpesaGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && g.now().Before(g.tokenExpiry) {
		return g.token, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+mpesaTokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	httpReq.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)

	var resp mpesaTokenResponse
	status, err := g.do(httpReq, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || resp.AccessToken == "" {
		return "", fmt.Errorf("token request failed with status %d", status)
	}

	ttl, err := strconv.Atoi(resp.ExpiresIn)
	if err != nil || ttl <= 0 {
		ttl = 3599
	}
	g.token = resp.AccessToken
	g.tokenExpiry = g.now().Add(time.Duration(ttl)*time.Second - mpesaTokenEarlyBy)

	return g.token, nil
}

func (g *MpesaGateway) invalidateToken() {
	g.mu.Lock()
	g.token = ""
	g.mu.Unlock()
}

// do executes req and decodes a JSON body into out. Non-JSON bodies are tolerated
// so that the status code still reaches the caller.
func (g *MpesaGateway) do(req *http.Request, out interface{}) (int, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayBodyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, out)
	}
	return resp.StatusCode, nil
}

func (g *MpesaGateway) callbackURL() string {
	if g.cfg.CallbackToken == "" {
		return g.cfg.CallbackURL
	}
	u, err := url.Parse(g.cfg.CallbackURL)
	if err != nil {
		return g.cfg.CallbackURL
	}
	q := u.Query()
	q.Set("token", g.cfg.CallbackToken)
	u.RawQuery = q.Encode()
	return u.String()
}

// ParseCallback implements payment.Gateway
func (g *MpesaGateway) ParseCallback(payload []byte) (*payment.Callback, error) {
	return ParseSTKCallback(payload)
}

// STKPassword is base64(shortcode + passkey + timestamp)
func STKPassword(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

func maskPhone(phone string) string {
	if len(phone) < 7 {
		return phone
	}
	return phone[:5] + strings.Repeat("*", len(phone)-7) + phone[len(phone)-2:]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
