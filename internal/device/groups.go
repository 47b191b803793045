package device

import (
	"context"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/protocolclient"
)

// clientFor returns the live, connected client for deviceID, or
// errDeviceNotConnected — the same gate Send uses, so group and privacy
// operations never reach a socket this instance doesn't hold.
func (e *Engine) clientFor(deviceID string) (protocolclient.Client, error) {
	inst, ok := e.get(deviceID)
	if !ok {
		return nil, errDeviceNotConnected()
	}
	inst.mu.Lock()
	client := inst.client
	inst.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return nil, errDeviceNotConnected()
	}
	return client, nil
}

// CreateGroup creates a new group through the device's live socket,
// per spec.md §4.G's "group ops".
func (e *Engine) CreateGroup(ctx context.Context, deviceID, subject string, participants []string) (string, error) {
	client, err := e.clientFor(deviceID)
	if err != nil {
		return "", err
	}
	jid, err := client.CreateGroup(ctx, subject, participants)
	if err != nil {
		return "", apierr.Upstream(err, "create group")
	}
	return jid, nil
}

// UpdateGroupParticipants adds or removes participants from a group.
func (e *Engine) UpdateGroupParticipants(ctx context.Context, deviceID, groupJID string, add, remove []string) error {
	client, err := e.clientFor(deviceID)
	if err != nil {
		return err
	}
	if err := client.UpdateGroupParticipants(ctx, groupJID, add, remove); err != nil {
		return apierr.Upstream(err, "update group participants")
	}
	return nil
}

// GetPrivacySettings reads the device's current privacy settings.
func (e *Engine) GetPrivacySettings(ctx context.Context, deviceID string) (map[string]string, error) {
	client, err := e.clientFor(deviceID)
	if err != nil {
		return nil, err
	}
	settings, err := client.GetPrivacySettings(ctx)
	if err != nil {
		return nil, apierr.Upstream(err, "get privacy settings")
	}
	return settings, nil
}

// SetPrivacySettings writes one or more privacy settings.
func (e *Engine) SetPrivacySettings(ctx context.Context, deviceID string, settings map[string]string) error {
	client, err := e.clientFor(deviceID)
	if err != nil {
		return err
	}
	if err := client.SetPrivacySettings(ctx, settings); err != nil {
		return apierr.Upstream(err, "set privacy settings")
	}
	return nil
}
