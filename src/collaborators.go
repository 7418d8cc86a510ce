package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"netbill/src/payments"
)

// The provisioning controller and SMS sender are external services; this
// file is the only place that knows how to reach them.

var collaboratorHTTPClient = &http.Client{Timeout: 15 * time.Second}

type radiusProvisioner struct {
	baseURL string
}

func newRadiusProvisioner() *radiusProvisioner {
	return &radiusProvisioner{baseURL: os.Getenv("PROVISIONER_URL")}
}

func (p *radiusProvisioner) AddManualCode(ctx context.Context, params *payments.ProvisionParams) error {
	payload := map[string]any{
		"platform_id": params.PlatformID,
		"code":        params.Code,
		"username":    params.Username,
		"phone":       params.Phone,
		"package_id":  params.PackageID,
		"minutes":     params.Minutes,
	}
	return p.post(ctx, "/codes", payload, nil)
}

func (p *radiusProvisioner) EnablePPPoE(ctx context.Context, platformID uint, username string) error {
	payload := map[string]any{
		"platform_id": platformID,
		"username":    username,
	}
	return p.post(ctx, "/pppoe/enable", payload, nil)
}

func (p *radiusProvisioner) FindLoginByCode(ctx context.Context, platformID uint, code string) (string, error) {
	var out struct {
		Login string `json:"login"`
	}
	payload := map[string]any{
		"platform_id": platformID,
		"code":        code,
	}
	if err := p.post(ctx, "/codes/lookup", payload, &out); err != nil {
		return "", err
	}
	return out.Login, nil
}

func (p *radiusProvisioner) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+os.Getenv("PROVISIONER_TOKEN"))
	resp, err := collaboratorHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[provisioner] %s failed: %d %s\n", path, resp.StatusCode, string(respBody))
		return fmt.Errorf("provisioner returned %d", resp.StatusCode)
	}
	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &result); err == nil && !result.Success && result.Message != "" {
		return errors.New(result.Message)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return err
		}
	}
	return nil
}

type httpSMSSender struct {
	baseURL string
}

func newHTTPSMSSender() *httpSMSSender {
	return &httpSMSSender{baseURL: os.Getenv("SMS_GATEWAY_URL")}
}

func (s *httpSMSSender) Send(ctx context.Context, phone string, message string) error {
	payload := map[string]any{
		"to":      phone,
		"message": message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+os.Getenv("SMS_GATEWAY_TOKEN"))
	resp, err := collaboratorHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.Success {
		return errors.New("sms gateway reported failure")
	}
	return nil
}
