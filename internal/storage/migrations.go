// File: internal/storage/migrations.go
package storage

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// GetMigrations returns the migration scripts for the given dialect.
// The schema is shared; only type spellings differ per backend.
func GetMigrations(dialect Dialect) []*Migration {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if dialect == DialectPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	return []*Migration{
		{
			Version:     "001",
			Description: "Create businesses table",
			SQL: `
				CREATE TABLE IF NOT EXISTS businesses (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					active BOOLEAN DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_businesses_active ON businesses(active);
				CREATE INDEX IF NOT EXISTS idx_businesses_updated_at ON businesses(updated_at);
			`,
		},
		{
			Version:     "002",
			Description: "Create tasks and task_logs tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS tasks (
					id TEXT PRIMARY KEY,
					business_id TEXT NOT NULL,
					campaign_id TEXT,
					task_type TEXT NOT NULL,
					schedule_type TEXT NOT NULL,
					frequency TEXT,
					next_run TIMESTAMP,
					last_run TIMESTAMP,
					status TEXT NOT NULL,
					priority INTEGER NOT NULL DEFAULT 3,
					retry_count INTEGER NOT NULL DEFAULT 0,
					max_retries INTEGER NOT NULL DEFAULT 3,
					auto_retry BOOLEAN DEFAULT TRUE,
					config TEXT, -- JSON
					trigger_condition TEXT, -- JSON
					result TEXT, -- JSON
					error TEXT,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL,
					completed_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_tasks_business ON tasks(business_id);
				CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
				CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(status, next_run);
				CREATE INDEX IF NOT EXISTS idx_tasks_type ON tasks(task_type);

				CREATE TABLE IF NOT EXISTS task_logs (
					id ` + serial + `,
					task_id TEXT NOT NULL,
					business_id TEXT NOT NULL,
					outcome TEXT NOT NULL,
					message TEXT,
					attempt INTEGER NOT NULL DEFAULT 0,
					duration_ms INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_task_logs_task ON task_logs(task_id);
				CREATE INDEX IF NOT EXISTS idx_task_logs_created_at ON task_logs(created_at);
			`,
		},
		{
			Version:     "003",
			Description: "Create alert_configurations and alerts tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS alert_configurations (
					id TEXT PRIMARY KEY,
					business_id TEXT NOT NULL,
					alert_type TEXT NOT NULL,
					thresholds TEXT NOT NULL, -- JSON
					check_frequency TEXT NOT NULL,
					channels TEXT, -- JSON
					active BOOLEAN DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_alert_configs_unique
					ON alert_configurations(business_id, alert_type);

				CREATE TABLE IF NOT EXISTS alerts (
					id TEXT PRIMARY KEY,
					business_id TEXT NOT NULL,
					alert_type TEXT NOT NULL,
					severity TEXT NOT NULL,
					title TEXT NOT NULL,
					message TEXT NOT NULL,
					trigger_data TEXT, -- JSON, immutable once written
					current_value REAL NOT NULL,
					previous_value REAL,
					percentage_change REAL,
					status TEXT NOT NULL DEFAULT 'active',
					created_at TIMESTAMP NOT NULL,
					acknowledged_at TIMESTAMP,
					resolved_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_alerts_business ON alerts(business_id);
				CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
				CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
			`,
		},
		{
			Version:     "004",
			Description: "Create notification_channels table",
			SQL: `
				CREATE TABLE IF NOT EXISTS notification_channels (
					id TEXT PRIMARY KEY,
					business_id TEXT NOT NULL,
					name TEXT NOT NULL,
					channel_type TEXT NOT NULL,
					settings TEXT NOT NULL, -- JSON
					trigger_events TEXT NOT NULL, -- JSON
					filters TEXT, -- JSON
					active BOOLEAN DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_channels_unique
					ON notification_channels(business_id, name);
			`,
		},
		{
			Version:     "005",
			Description: "Create automation_rules table",
			SQL: `
				CREATE TABLE IF NOT EXISTS automation_rules (
					id TEXT PRIMARY KEY,
					business_id TEXT NOT NULL,
					name TEXT NOT NULL,
					trigger_condition TEXT NOT NULL, -- JSON
					action TEXT NOT NULL, -- JSON
					active BOOLEAN DEFAULT TRUE,
					last_fired TIMESTAMP,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_rules_business ON automation_rules(business_id);
				CREATE INDEX IF NOT EXISTS idx_rules_active ON automation_rules(active);
			`,
		},
		{
			Version:     "006",
			Description: "Create metric snapshot tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS ranking_snapshots (
					id TEXT PRIMARY KEY,
					business_id TEXT NOT NULL,
					keyword TEXT NOT NULL,
					position INTEGER NOT NULL,
					captured_at TIMESTAMP NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_rankings_lookup
					ON ranking_snapshots(business_id, captured_at);

				CREATE TABLE IF NOT EXISTS traffic_snapshots (
					id TEXT PRIMARY KEY,
					business_id TEXT NOT NULL,
					resource TEXT NOT NULL,
					visits INTEGER NOT NULL,
					captured_at TIMESTAMP NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_traffic_lookup
					ON traffic_snapshots(business_id, captured_at);

				CREATE TABLE IF NOT EXISTS audit_snapshots (
					id TEXT PRIMARY KEY,
					business_id TEXT NOT NULL,
					score REAL NOT NULL,
					critical_issues INTEGER NOT NULL DEFAULT 0,
					captured_at TIMESTAMP NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_audits_lookup
					ON audit_snapshots(business_id, captured_at);

				CREATE TABLE IF NOT EXISTS competitor_snapshots (
					id TEXT PRIMARY KEY,
					business_id TEXT NOT NULL,
					low_difficulty_gaps INTEGER NOT NULL DEFAULT 0,
					total_gaps INTEGER NOT NULL DEFAULT 0,
					captured_at TIMESTAMP NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_competitors_lookup
					ON competitor_snapshots(business_id, captured_at);
			`,
		},
	}
}
