package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"netbill/src/lib"
	"netbill/src/models"
	"netbill/src/types"
)

type fakeProvisioner struct {
	failures int
	attempts int
	existing string
}

func (f *fakeProvisioner) AddManualCode(ctx context.Context, params *ProvisionParams) error {
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("controller unreachable")
	}
	return nil
}

func (f *fakeProvisioner) EnablePPPoE(ctx context.Context, platformID uint, username string) error {
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("controller unreachable")
	}
	return nil
}

func (f *fakeProvisioner) FindLoginByCode(ctx context.Context, platformID uint, code string) (string, error) {
	return f.existing, nil
}

func stubPushEvents(t *testing.T) *[]string {
	t.Helper()
	var events []string
	original := lib.PushPlatformEvent
	lib.PushPlatformEvent = func(platformID uint, event string, data map[string]any) {
		events = append(events, event)
	}
	t.Cleanup(func() { lib.PushPlatformEvent = original })
	return &events
}

func TestProvisionWithRetry(t *testing.T) {
	record := &models.PaymentRecord{PlatformID: 3, Code: "THX4Y7Q2"}
	params := &ProvisionParams{PlatformID: 3, Code: "THX4Y7Q2"}

	t.Run("recovers within the retry window", func(t *testing.T) {
		events := stubPushEvents(t)
		fake := &fakeProvisioner{failures: 2}
		act := &Activator{
			Provision:     fake,
			RetryInterval: time.Millisecond,
			RetryWindow:   time.Second,
		}

		err := act.provisionWithRetry(context.Background(), record, params)
		assert.Nil(t, err)
		assert.Equal(t, 3, fake.attempts)
		assert.Contains(t, *events, "activation-connecting")
	})

	t.Run("gives up when the window closes", func(t *testing.T) {
		stubPushEvents(t)
		fake := &fakeProvisioner{failures: 1000}
		act := &Activator{
			Provision:     fake,
			RetryInterval: time.Millisecond,
			RetryWindow:   20 * time.Millisecond,
		}

		err := act.provisionWithRetry(context.Background(), record, params)
		assert.NotNil(t, err)
		assert.Greater(t, fake.attempts, 1)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		stubPushEvents(t)
		fake := &fakeProvisioner{failures: 1000}
		act := &Activator{
			Provision:     fake,
			RetryInterval: 10 * time.Millisecond,
			RetryWindow:   time.Minute,
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := act.provisionWithRetry(ctx, record, params)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, fake.attempts)
	})
}

func TestActivate(t *testing.T) {
	t.Run("existing voucher short-circuits provisioning", func(t *testing.T) {
		newMockDB(t)
		stubPushEvents(t)
		fake := &fakeProvisioner{existing: "THX4Y7Q2"}
		act := &Activator{Provision: fake}

		record := &models.PaymentRecord{
			PlatformID: 3,
			Code:       "THX4Y7Q2",
			Service:    types.SERVICE_HOTSPOT,
		}
		result, err := act.Activate(context.Background(), record)
		assert.Nil(t, err)
		if assert.NotNil(t, result) {
			assert.Equal(t, "THX4Y7Q2", result.LoginCode)
		}
		assert.Equal(t, 0, fake.attempts)
	})

	t.Run("outbound transfers have nothing to provision", func(t *testing.T) {
		act := &Activator{}
		record := &models.PaymentRecord{Service: types.SERVICE_B2B}
		result, err := act.Activate(context.Background(), record)
		assert.Nil(t, err)
		assert.Nil(t, result)
	})

	t.Run("unknown service is an error", func(t *testing.T) {
		act := &Activator{}
		record := &models.PaymentRecord{Service: "fax"}
		_, err := act.Activate(context.Background(), record)
		assert.NotNil(t, err)
	})
}
