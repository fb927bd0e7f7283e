package sqlite

// schema defines the database schema for driftwatch.
//
// Timestamps are stored as INTEGER Unix nanoseconds so that ordering,
// range filters, and MIN/MAX aggregates all work on plain integer
// comparison and round-trip exactly. Structured payloads are stored as
// JSON text.
const schema = `
CREATE TABLE IF NOT EXISTS trace_events (
	event_id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	action_type TEXT NOT NULL,
	action_name TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	token_count INTEGER DEFAULT 0,
	input_data TEXT DEFAULT '{}',
	output_data TEXT DEFAULT '{}',
	duration_ms REAL DEFAULT 0.0,
	metadata TEXT DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS drift_events (
	event_id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	detector TEXT NOT NULL,
	severity TEXT NOT NULL,
	score REAL NOT NULL,
	message TEXT NOT NULL,
	suggested_action TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	context TEXT DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS baselines (
	agent_id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_agent ON trace_events(agent_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_traces_run ON trace_events(run_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_drift_agent ON drift_events(agent_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_drift_severity ON drift_events(severity, timestamp);
`
