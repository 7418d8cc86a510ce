package lib

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"netbill/src/config"
)

// DarajaCredentials are the per-platform API secrets used to sign outbound
// Daraja commands.
type DarajaCredentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	ShortCode         string
	Passkey           string
	InitiatorName     string
	InitiatorPassword string
}

// DarajaError carries the HTTP status alongside the provider message so the
// credential diagnostics layer can tell configuration failures apart from
// ordinary declines.
type DarajaError struct {
	StatusCode int
	Message    string
}

func (e *DarajaError) Error() string {
	return fmt.Sprintf("daraja: %d %s", e.StatusCode, e.Message)
}

var darajaHTTPClient = &http.Client{Timeout: 30 * time.Second}

// NewDarajaHTTPClient Replace http client with custom implementation
func NewDarajaHTTPClient(c *http.Client) *http.Client {
	darajaHTTPClient = c
	return darajaHTTPClient
}

func darajaBaseURL() string {
	if os.Getenv("DARAJA_ENV") == "production" {
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

// DarajaAccessToken performs the client-credentials exchange.
func DarajaAccessToken(ctx context.Context, consumerKey string, consumerSecret string) (string, error) {
	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", darajaBaseURL())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(consumerKey, consumerSecret)
	resp, err := darajaHTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[daraja] Error obtaining access token: %d %s\n", resp.StatusCode, string(body))
		return "", &DarajaError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", errors.New("empty access token in response")
	}
	return parsed.AccessToken, nil
}

// SecurityCredential encrypts the initiator password with the provider
// certificate (PKCS1 padding) and base64-encodes the result, as required for
// initiator-authenticated commands.
func SecurityCredential(initiatorPassword string, certPEM []byte) (string, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return "", errors.New("could not decode provider certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return "", errors.New("provider certificate does not carry an RSA key")
	}
	enc, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(initiatorPassword))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(enc), nil
}

func darajaPost(ctx context.Context, token string, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := darajaBaseURL() + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := darajaHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[daraja] %s failed: %d %s\n", path, resp.StatusCode, string(respBody))
		var apiErr struct {
			ErrorMessage string `json:"errorMessage"`
		}
		msg := string(respBody)
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.ErrorMessage != "" {
			msg = apiErr.ErrorMessage
		}
		return &DarajaError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return err
		}
	}
	return nil
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush initiates a Lipa Na M-Pesa Online prompt on the payer's phone.
func STKPush(ctx context.Context, creds *DarajaCredentials, phone string, amount int, accountRef string, callbackURL string) (*STKPushResponse, error) {
	token, err := DarajaAccessToken(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		return nil, err
	}
	timestamp := time.Now().Format(config.DARAJA_TIMESTAMP_FORMAT)
	password := base64.StdEncoding.EncodeToString([]byte(creds.ShortCode + creds.Passkey + timestamp))
	payload := map[string]any{
		"BusinessShortCode": creds.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount,
		"PartyA":            phone,
		"PartyB":            creds.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       callbackURL,
		"AccountReference":  accountRef,
		"TransactionDesc":   fmt.Sprintf("Payment for %s", accountRef),
	}
	var response STKPushResponse
	if err := darajaPost(ctx, token, "/mpesa/stkpush/v1/processrequest", payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

type STKQueryResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// STKQuery asks the provider for the outcome of an STK push, keyed by the
// CheckoutRequestID. Unlike the initiator commands this answers
// synchronously, so there is no result callback to correlate.
func STKQuery(ctx context.Context, creds *DarajaCredentials, checkoutRequestID string) (*STKQueryResponse, error) {
	token, err := DarajaAccessToken(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		return nil, err
	}
	timestamp := time.Now().Format(config.DARAJA_TIMESTAMP_FORMAT)
	password := base64.StdEncoding.EncodeToString([]byte(creds.ShortCode + creds.Passkey + timestamp))
	payload := map[string]any{
		"BusinessShortCode": creds.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}
	var response STKQueryResponse
	if err := darajaPost(ctx, token, "/mpesa/stkpushquery/v1/query", payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

type CommandResponse struct {
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ConversationID           string `json:"ConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// B2BTransfer moves funds from the platform shortcode to another paybill or
// till.
func B2BTransfer(ctx context.Context, creds *DarajaCredentials, securityCredential string, amount int, destShortCode string, destAccount string, destType string, resultURL string) (*CommandResponse, error) {
	token, err := DarajaAccessToken(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		return nil, err
	}
	commandID := "BusinessPayBill"
	receiverType := 4
	if destType == "till" {
		commandID = "BusinessBuyGoods"
		receiverType = 2
	}
	payload := map[string]any{
		"Initiator":              creds.InitiatorName,
		"SecurityCredential":     securityCredential,
		"CommandID":              commandID,
		"SenderIdentifierType":   4,
		"RecieverIdentifierType": receiverType,
		"Amount":                 amount,
		"PartyA":                 creds.ShortCode,
		"PartyB":                 destShortCode,
		"AccountReference":       destAccount,
		"Remarks":                "Settlement transfer",
		"QueueTimeOutURL":        resultURL,
		"ResultURL":              resultURL,
	}
	var response CommandResponse
	if err := darajaPost(ctx, token, "/mpesa/b2b/v1/paymentrequest", payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// B2PochiTransfer moves funds from the platform shortcode to a personal
// M-Pesa wallet.
func B2PochiTransfer(ctx context.Context, creds *DarajaCredentials, securityCredential string, amount int, phone string, resultURL string) (*CommandResponse, error) {
	token, err := DarajaAccessToken(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"InitiatorName":          creds.InitiatorName,
		"SecurityCredential":     securityCredential,
		"CommandID":              "BusinessPayToBulk",
		"SenderIdentifierType":   4,
		"RecieverIdentifierType": 1,
		"Amount":                 amount,
		"PartyA":                 creds.ShortCode,
		"PartyB":                 phone,
		"Remarks":                "Pooled settlement transfer",
		"QueueTimeOutURL":        resultURL,
		"ResultURL":              resultURL,
	}
	var response CommandResponse
	if err := darajaPost(ctx, token, "/mpesa/b2c/v3/paymentrequest", payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// AccountBalance queries the settlement float on the platform shortcode.
func AccountBalance(ctx context.Context, creds *DarajaCredentials, securityCredential string, resultURL string) (*CommandResponse, error) {
	token, err := DarajaAccessToken(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"Initiator":          creds.InitiatorName,
		"SecurityCredential": securityCredential,
		"CommandID":          "AccountBalance",
		"PartyA":             creds.ShortCode,
		"IdentifierType":     4,
		"Remarks":            "Balance query",
		"QueueTimeOutURL":    resultURL,
		"ResultURL":          resultURL,
	}
	var response CommandResponse
	if err := darajaPost(ctx, token, "/mpesa/accountbalance/v1/query", payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// TransactionStatus queries the provider for the current state of a
// transaction, used by the stale-payment reconciler.
func TransactionStatus(ctx context.Context, creds *DarajaCredentials, securityCredential string, transactionID string, resultURL string) (*CommandResponse, error) {
	token, err := DarajaAccessToken(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"Initiator":          creds.InitiatorName,
		"SecurityCredential": securityCredential,
		"CommandID":          "TransactionStatusQuery",
		"TransactionID":      transactionID,
		"PartyA":             creds.ShortCode,
		"IdentifierType":     4,
		"Remarks":            "Status query",
		"Occasion":           "Reconciliation",
		"QueueTimeOutURL":    resultURL,
		"ResultURL":          resultURL,
	}
	var response CommandResponse
	if err := darajaPost(ctx, token, "/mpesa/transactionstatus/v1/query", payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// ReverseTransaction asks the provider to reverse a settled transaction.
func ReverseTransaction(ctx context.Context, creds *DarajaCredentials, securityCredential string, transactionID string, amount int, resultURL string) (*CommandResponse, error) {
	token, err := DarajaAccessToken(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"Initiator":              creds.InitiatorName,
		"SecurityCredential":     securityCredential,
		"CommandID":              "TransactionReversal",
		"TransactionID":          transactionID,
		"Amount":                 amount,
		"ReceiverParty":          creds.ShortCode,
		"RecieverIdentifierType": 11,
		"Remarks":                "Reversal",
		"QueueTimeOutURL":        resultURL,
		"ResultURL":              resultURL,
	}
	var response CommandResponse
	if err := darajaPost(ctx, token, "/mpesa/reversal/v1/request", payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}
