package store

// migrations is the forward-only, ordered schema history. Never edit an
// applied migration's sql — add a new version instead.
var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		sql: `
CREATE TABLE tenants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	api_key_hash TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'active',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX idx_tenants_status ON tenants(status);

CREATE TABLE devices (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	label TEXT NOT NULL,
	phone_number TEXT,
	status TEXT NOT NULL DEFAULT 'disconnected',
	created_at INTEGER NOT NULL,
	last_seen INTEGER
);
CREATE INDEX idx_devices_tenant_id ON devices(tenant_id);
CREATE INDEX idx_devices_status ON devices(status);

CREATE TABLE device_sessions (
	device_id TEXT PRIMARY KEY REFERENCES devices(id) ON DELETE CASCADE,
	tenant_id TEXT,
	session_kind TEXT NOT NULL DEFAULT 'qr',
	session_dir TEXT NOT NULL,
	wa_jid TEXT,
	wa_name TEXT,
	updated_at INTEGER NOT NULL
);

CREATE TABLE outbox (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	jid TEXT NOT NULL,
	message_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	retries INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	idempotency_key TEXT,
	wa_message_id TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	sent_at INTEGER
);
CREATE UNIQUE INDEX idx_outbox_device_idem ON outbox(device_id, idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE INDEX idx_outbox_tenant_device ON outbox(tenant_id, device_id);
CREATE INDEX idx_outbox_status ON outbox(status);
CREATE INDEX idx_outbox_created_at ON outbox(created_at);
CREATE INDEX idx_outbox_wa_message_id ON outbox(wa_message_id);

CREATE TABLE inbox (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	jid TEXT NOT NULL,
	message_id TEXT NOT NULL,
	message_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	received_at INTEGER NOT NULL
);
CREATE INDEX idx_inbox_tenant_device ON inbox(tenant_id, device_id);
CREATE INDEX idx_inbox_received_at ON inbox(received_at);
CREATE INDEX idx_inbox_message_id ON inbox(message_id);

CREATE TABLE event_logs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	received_at INTEGER NOT NULL
);
CREATE INDEX idx_event_logs_tenant_device ON event_logs(tenant_id, device_id);
CREATE INDEX idx_event_logs_event_type ON event_logs(event_type);
CREATE INDEX idx_event_logs_received_at ON event_logs(received_at);

CREATE TABLE webhooks (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	secret TEXT,
	events TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	retry_count INTEGER NOT NULL DEFAULT 3,
	timeout_ms INTEGER NOT NULL DEFAULT 5000,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX idx_webhooks_tenant_id ON webhooks(tenant_id);
CREATE INDEX idx_webhooks_enabled ON webhooks(enabled);

CREATE TABLE webhook_logs (
	id TEXT PRIMARY KEY,
	webhook_id TEXT NOT NULL REFERENCES webhooks(id) ON DELETE CASCADE,
	event_id TEXT,
	status_code INTEGER,
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	sent_at INTEGER
);
CREATE INDEX idx_webhook_logs_webhook_id ON webhook_logs(webhook_id);

CREATE TABLE dlq (
	id TEXT PRIMARY KEY,
	webhook_id TEXT NOT NULL,
	event_payload TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX idx_dlq_webhook_id ON dlq(webhook_id);

CREATE TABLE device_locks (
	device_id TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	acquired_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX idx_device_locks_expires_at ON device_locks(expires_at);

CREATE TABLE audit_logs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT,
	resource_id TEXT,
	meta TEXT,
	ip_address TEXT,
	user_agent TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX idx_audit_logs_tenant_id ON audit_logs(tenant_id);
CREATE INDEX idx_audit_logs_created_at ON audit_logs(created_at);
CREATE INDEX idx_audit_logs_action ON audit_logs(action);

CREATE TABLE lid_phone_map (
	device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	lid TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (device_id, lid)
);

CREATE TABLE chats (
	device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	jid TEXT NOT NULL,
	name TEXT,
	last_message_at INTEGER,
	unread_count INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (device_id, jid)
);
CREATE INDEX idx_chats_device_id ON chats(device_id);
`,
	},
}
