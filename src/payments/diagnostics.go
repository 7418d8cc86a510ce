package payments

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"netbill/src/db"
	"netbill/src/lib"
	"netbill/src/models"
	"netbill/src/types"
)

// DiagnoseCredentialError inspects a failed provider call and reports a
// configuration-class problem the operator must fix, or "" when the failure
// is an ordinary payment error. Rules are ordered, first match wins.
func DiagnoseCredentialError(err error) string {
	if err == nil {
		return ""
	}
	status := 0
	var derr *lib.DarajaError
	if errors.As(err, &derr) {
		status = derr.StatusCode
	}
	msg := strings.ToLower(err.Error())
	if status == http.StatusUnauthorized ||
		strings.Contains(msg, "invalid credentials") ||
		strings.Contains(msg, "invalid consumer") {
		return "Your M-Pesa consumer key or secret is invalid. Update your API credentials."
	}
	if strings.Contains(msg, "invalid security credential") ||
		strings.Contains(msg, "initiator information is invalid") {
		return "Your M-Pesa initiator PIN is wrong or expired. Update the initiator password."
	}
	if strings.Contains(msg, "invalid passkey") {
		return "Your M-Pesa passkey is invalid. Update the Lipa Na M-Pesa passkey."
	}
	return ""
}

// RaiseCredentialAlert notifies the tenant in realtime and writes an audit
// entry. Called exactly once per triggering failure.
func RaiseCredentialAlert(platformID uint, diagnosis string, raw error) {
	lib.PushPlatformEvent(platformID, "credential-alert", map[string]any{
		"message": diagnosis,
	})
	trail := models.TrailLog{
		PlatformID: platformID,
		Type:       "credential-alert",
		Message:    diagnosis,
		Metadata:   &types.JSONB{"error": raw.Error()},
	}
	if err := db.GetDb().Create(&trail).Error; err != nil {
		log.Printf("[alert] Error writing trail log for platform %d: %s\n", platformID, err.Error())
	}
}
