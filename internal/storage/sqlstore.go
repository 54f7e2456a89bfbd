// File: internal/storage/sqlstore.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// Dialect selects placeholder style and upsert syntax per backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// sqlStore implements Storage over database/sql. Queries are written with
// numbered placeholders and rewritten to ? for SQLite.
type sqlStore struct {
	db      *sql.DB
	dialect Dialect
	config  *StorageConfig
	logger  *logrus.Logger
}

// rebind converts $n placeholders to ? for SQLite.
func (s *sqlStore) rebind(query string, args int) string {
	if s.dialect == DialectPostgres {
		return query
	}
	for i := args; i >= 1; i-- {
		query = strings.Replace(query, fmt.Sprintf("$%d", i), "?", 1)
	}
	return query
}

// upsertClause returns the conflict clause for INSERT .. ON CONFLICT upserts.
func (s *sqlStore) upsertClause(keyCols string, updateCols []string) string {
	sets := make([]string, 0, len(updateCols))
	for _, col := range updateCols {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", keyCols, strings.Join(sets, ", "))
}

func (s *sqlStore) exec(ctx context.Context, query string, argCount int, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query, argCount), args...)
}

func (s *sqlStore) query(ctx context.Context, query string, argCount int, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query, argCount), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, query string, argCount int, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query, argCount), args...)
}

// marshalJSON encodes v as a nullable JSON column value.
func marshalJSON(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal JSON column", err.Error())
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalJSON(raw sql.NullString, dest interface{}) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), dest); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to unmarshal JSON column", err.Error())
	}
	return nil
}

// Ping checks database connectivity
func (s *sqlStore) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("Database connection closed")
		return err
	}
	return nil
}

// Migrate runs database migrations
func (s *sqlStore) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	s.logger.Info("Starting database migrations")

	for _, migration := range GetMigrations(s.dialect) {
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	s.logger.Info("Database migrations completed")
	return nil
}

// --- Business operations ---

func (s *sqlStore) SaveBusiness(ctx context.Context, business *models.Business) error {
	query := `
		INSERT INTO businesses (id, name, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)` +
		s.upsertClause("id", []string{"name", "active", "updated_at"})

	_, err := s.exec(ctx, query, 5,
		business.ID, business.Name, business.Active, business.CreatedAt, business.UpdatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save business", err.Error())
	}
	return nil
}

func (s *sqlStore) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	row := s.queryRow(ctx, `
		SELECT id, name, active, created_at, updated_at
		FROM businesses WHERE id = $1`, 1, id)

	var business models.Business
	err := row.Scan(&business.ID, &business.Name, &business.Active,
		&business.CreatedAt, &business.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get business", err.Error())
	}
	return &business, nil
}

func (s *sqlStore) GetActiveBusinesses(ctx context.Context, limit int) ([]*models.Business, error) {
	query := `
		SELECT id, name, active, created_at, updated_at
		FROM businesses WHERE active = $1
		ORDER BY updated_at DESC`
	args := []interface{}{true}
	argCount := 1
	if limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, limit)
	}

	rows, err := s.query(ctx, query, argCount, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query businesses", err.Error())
	}
	defer rows.Close()

	var businesses []*models.Business
	for rows.Next() {
		var business models.Business
		if err := rows.Scan(&business.ID, &business.Name, &business.Active,
			&business.CreatedAt, &business.UpdatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan business", err.Error())
		}
		businesses = append(businesses, &business)
	}
	return businesses, nil
}

// --- Task operations ---

const taskColumns = `id, business_id, campaign_id, task_type, schedule_type, frequency,
	next_run, last_run, status, priority, retry_count, max_retries, auto_retry,
	config, trigger_condition, result, error, created_at, updated_at, completed_at`

func (s *sqlStore) SaveTask(ctx context.Context, task *models.Task) error {
	configJSON, err := marshalJSON(task.Config)
	if err != nil {
		return err
	}
	triggerJSON, err := marshalJSON(task.Trigger)
	if err != nil {
		return err
	}
	resultJSON, err := marshalJSON(task.Result)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err = s.exec(ctx, query, 20,
		task.ID, task.BusinessID, task.CampaignID, task.Type, task.Schedule,
		task.Frequency, task.NextRun, task.LastRun, task.Status, task.Priority,
		task.RetryCount, task.MaxRetries, task.AutoRetry, configJSON, triggerJSON,
		resultJSON, task.Error, task.CreatedAt, task.UpdatedAt, task.CompletedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save task", err.Error())
	}
	return nil
}

func (s *sqlStore) scanTask(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Task, error) {
	var task models.Task
	var campaignID, frequency, errMsg sql.NullString
	var configJSON, triggerJSON, resultJSON sql.NullString
	var nextRun, lastRun, completedAt sql.NullTime

	err := scanner.Scan(&task.ID, &task.BusinessID, &campaignID, &task.Type,
		&task.Schedule, &frequency, &nextRun, &lastRun, &task.Status,
		&task.Priority, &task.RetryCount, &task.MaxRetries, &task.AutoRetry,
		&configJSON, &triggerJSON, &resultJSON, &errMsg,
		&task.CreatedAt, &task.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if campaignID.Valid {
		task.CampaignID = &campaignID.String
	}
	if frequency.Valid {
		f := models.Frequency(frequency.String)
		task.Frequency = &f
	}
	if errMsg.Valid {
		task.Error = &errMsg.String
	}
	if nextRun.Valid {
		task.NextRun = &nextRun.Time
	}
	if lastRun.Valid {
		task.LastRun = &lastRun.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	if err := unmarshalJSON(configJSON, &task.Config); err != nil {
		return nil, err
	}
	if triggerJSON.Valid {
		task.Trigger = &models.TriggerCondition{}
		if err := unmarshalJSON(triggerJSON, task.Trigger); err != nil {
			return nil, err
		}
	}
	if err := unmarshalJSON(resultJSON, &task.Result); err != nil {
		return nil, err
	}

	return &task, nil
}

func (s *sqlStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, 1, id)
	task, err := s.scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get task", err.Error())
	}
	return task, nil
}

func (s *sqlStore) buildTaskFilter(filter models.TaskFilter) (string, []interface{}, int) {
	clause := " WHERE 1=1"
	args := []interface{}{}
	argIndex := 0

	if filter.BusinessID != nil {
		argIndex++
		clause += fmt.Sprintf(" AND business_id = $%d", argIndex)
		args = append(args, *filter.BusinessID)
	}
	if filter.CampaignID != nil {
		argIndex++
		clause += fmt.Sprintf(" AND campaign_id = $%d", argIndex)
		args = append(args, *filter.CampaignID)
	}
	if filter.Type != nil {
		argIndex++
		clause += fmt.Sprintf(" AND task_type = $%d", argIndex)
		args = append(args, *filter.Type)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			argIndex++
			placeholders = append(placeholders, fmt.Sprintf("$%d", argIndex))
			args = append(args, status)
		}
		clause += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if filter.DueBefore != nil {
		argIndex++
		clause += fmt.Sprintf(" AND next_run <= $%d", argIndex)
		args = append(args, *filter.DueBefore)
	}

	return clause, args, argIndex
}

func (s *sqlStore) GetTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	clause, args, argIndex := s.buildTaskFilter(filter)
	query := `SELECT ` + taskColumns + ` FROM tasks` + clause + ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		argIndex++
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		argIndex++
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := s.query(ctx, query, argIndex, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query tasks", err.Error())
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan task", err.Error())
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *sqlStore) GetTaskCounts(ctx context.Context, filter models.TaskFilter) (map[models.TaskStatus]int64, error) {
	clause, args, argIndex := s.buildTaskFilter(filter)
	query := `SELECT status, COUNT(*) FROM tasks` + clause + ` GROUP BY status`

	rows, err := s.query(ctx, query, argIndex, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count tasks", err.Error())
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int64)
	for rows.Next() {
		var status models.TaskStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan task count", err.Error())
		}
		counts[status] = count
	}
	return counts, nil
}

func (s *sqlStore) UpdateTask(ctx context.Context, task *models.Task) error {
	configJSON, err := marshalJSON(task.Config)
	if err != nil {
		return err
	}
	resultJSON, err := marshalJSON(task.Result)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks SET
			next_run = $1, last_run = $2, status = $3, priority = $4,
			retry_count = $5, config = $6, result = $7, error = $8,
			updated_at = $9, completed_at = $10
		WHERE id = $11`

	result, err := s.exec(ctx, query, 11,
		task.NextRun, task.LastRun, task.Status, task.Priority,
		task.RetryCount, configJSON, resultJSON, task.Error,
		task.UpdatedAt, task.CompletedAt, task.ID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to update task", err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to get rows affected", err.Error())
	}
	if rowsAffected == 0 {
		return utils.NewAppError(utils.ErrCodeNotFound, "Task not found", task.ID)
	}
	return nil
}

func (s *sqlStore) GetDueTasks(ctx context.Context, now time.Time, limit int) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + ` FROM tasks
		WHERE status IN ($1, $2) AND next_run IS NOT NULL AND next_run <= $3
		ORDER BY priority DESC, created_at ASC
		LIMIT $4`

	rows, err := s.query(ctx, query, 4,
		models.TaskStatusPending, models.TaskStatusScheduled, now, limit)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query due tasks", err.Error())
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan due task", err.Error())
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *sqlStore) AppendTaskLog(ctx context.Context, log *models.TaskExecutionLog) error {
	query := `
		INSERT INTO task_logs (task_id, business_id, outcome, message, attempt, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.exec(ctx, query, 7,
		log.TaskID, log.BusinessID, log.Outcome, log.Message, log.Attempt,
		log.Duration.Milliseconds(), log.CreatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to append task log", err.Error())
	}
	return nil
}

func (s *sqlStore) GetTaskLogs(ctx context.Context, taskID string, limit int) ([]*models.TaskExecutionLog, error) {
	query := `
		SELECT id, task_id, business_id, outcome, message, attempt, duration_ms, created_at
		FROM task_logs WHERE task_id = $1 ORDER BY created_at DESC LIMIT $2`

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, query, 2, taskID, limit)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query task logs", err.Error())
	}
	defer rows.Close()

	var logs []*models.TaskExecutionLog
	for rows.Next() {
		var log models.TaskExecutionLog
		var durationMs int64
		if err := rows.Scan(&log.ID, &log.TaskID, &log.BusinessID, &log.Outcome,
			&log.Message, &log.Attempt, &durationMs, &log.CreatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan task log", err.Error())
		}
		log.Duration = time.Duration(durationMs) * time.Millisecond
		logs = append(logs, &log)
	}
	return logs, nil
}

// --- Alert configuration operations ---

func (s *sqlStore) SaveAlertConfiguration(ctx context.Context, cfg *models.AlertConfiguration) error {
	thresholdsJSON, err := marshalJSON(cfg.Thresholds)
	if err != nil {
		return err
	}
	channelsJSON, err := marshalJSON(cfg.Channels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alert_configurations
			(id, business_id, alert_type, thresholds, check_frequency, channels, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)` +
		s.upsertClause("business_id, alert_type",
			[]string{"thresholds", "check_frequency", "channels", "active", "updated_at"})

	_, err = s.exec(ctx, query, 9,
		cfg.ID, cfg.BusinessID, cfg.AlertType, thresholdsJSON, cfg.CheckFrequency,
		channelsJSON, cfg.Active, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save alert configuration", err.Error())
	}
	return nil
}

func (s *sqlStore) scanAlertConfiguration(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.AlertConfiguration, error) {
	var cfg models.AlertConfiguration
	var thresholdsJSON, channelsJSON sql.NullString

	err := scanner.Scan(&cfg.ID, &cfg.BusinessID, &cfg.AlertType, &thresholdsJSON,
		&cfg.CheckFrequency, &channelsJSON, &cfg.Active, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(thresholdsJSON, &cfg.Thresholds); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(channelsJSON, &cfg.Channels); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *sqlStore) GetAlertConfiguration(ctx context.Context, businessID string, alertType models.AlertType) (*models.AlertConfiguration, error) {
	row := s.queryRow(ctx, `
		SELECT id, business_id, alert_type, thresholds, check_frequency, channels, active, created_at, updated_at
		FROM alert_configurations WHERE business_id = $1 AND alert_type = $2`, 2, businessID, alertType)

	cfg, err := s.scanAlertConfiguration(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get alert configuration", err.Error())
	}
	return cfg, nil
}

func (s *sqlStore) GetAlertConfigurations(ctx context.Context, businessID string) ([]*models.AlertConfiguration, error) {
	rows, err := s.query(ctx, `
		SELECT id, business_id, alert_type, thresholds, check_frequency, channels, active, created_at, updated_at
		FROM alert_configurations WHERE business_id = $1 ORDER BY alert_type ASC`, 1, businessID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query alert configurations", err.Error())
	}
	defer rows.Close()

	var configs []*models.AlertConfiguration
	for rows.Next() {
		cfg, err := s.scanAlertConfiguration(rows)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan alert configuration", err.Error())
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// --- Alert operations ---

const alertColumns = `id, business_id, alert_type, severity, title, message, trigger_data,
	current_value, previous_value, percentage_change, status, created_at, acknowledged_at, resolved_at`

func (s *sqlStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	triggerJSON, err := marshalJSON(alert.TriggerData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = s.exec(ctx, query, 14,
		alert.ID, alert.BusinessID, alert.Type, alert.Severity, alert.Title,
		alert.Message, triggerJSON, alert.CurrentValue, alert.PreviousValue,
		alert.PercentageChange, alert.Status, alert.CreatedAt,
		alert.AcknowledgedAt, alert.ResolvedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save alert", err.Error())
	}
	return nil
}

func (s *sqlStore) scanAlert(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Alert, error) {
	var alert models.Alert
	var triggerJSON sql.NullString
	var previousValue, percentageChange sql.NullFloat64
	var acknowledgedAt, resolvedAt sql.NullTime

	err := scanner.Scan(&alert.ID, &alert.BusinessID, &alert.Type, &alert.Severity,
		&alert.Title, &alert.Message, &triggerJSON, &alert.CurrentValue,
		&previousValue, &percentageChange, &alert.Status, &alert.CreatedAt,
		&acknowledgedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	if previousValue.Valid {
		alert.PreviousValue = &previousValue.Float64
	}
	if percentageChange.Valid {
		alert.PercentageChange = &percentageChange.Float64
	}
	if acknowledgedAt.Valid {
		alert.AcknowledgedAt = &acknowledgedAt.Time
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	if err := unmarshalJSON(triggerJSON, &alert.TriggerData); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *sqlStore) GetAlert(ctx context.Context, id, businessID string) (*models.Alert, error) {
	row := s.queryRow(ctx, `
		SELECT `+alertColumns+` FROM alerts WHERE id = $1 AND business_id = $2`, 2, id, businessID)

	alert, err := s.scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get alert", err.Error())
	}
	return alert, nil
}

func (s *sqlStore) GetAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	args := []interface{}{}
	argIndex := 0

	if filter.BusinessID != nil {
		argIndex++
		query += fmt.Sprintf(" AND business_id = $%d", argIndex)
		args = append(args, *filter.BusinessID)
	}
	if filter.Type != nil {
		argIndex++
		query += fmt.Sprintf(" AND alert_type = $%d", argIndex)
		args = append(args, *filter.Type)
	}
	if filter.Severity != nil {
		argIndex++
		query += fmt.Sprintf(" AND severity = $%d", argIndex)
		args = append(args, *filter.Severity)
	}
	if filter.Status != nil {
		argIndex++
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
	}
	if filter.Since != nil {
		argIndex++
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *filter.Since)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		argIndex++
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		argIndex++
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := s.query(ctx, query, argIndex, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query alerts", err.Error())
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := s.scanAlert(rows)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan alert", err.Error())
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (s *sqlStore) UpdateAlertStatus(ctx context.Context, id, businessID string, status models.AlertStatus, at time.Time) error {
	var query string
	switch status {
	case models.AlertStatusAcknowledged:
		query = `UPDATE alerts SET status = $1, acknowledged_at = $2 WHERE id = $3 AND business_id = $4`
	case models.AlertStatusResolved:
		query = `UPDATE alerts SET status = $1, resolved_at = $2 WHERE id = $3 AND business_id = $4`
	default:
		return utils.NewAppError(utils.ErrCodeValidation, "Unsupported alert status transition", string(status))
	}

	result, err := s.exec(ctx, query, 4, status, at, id, businessID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to update alert status", err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to get rows affected", err.Error())
	}
	if rowsAffected == 0 {
		return utils.NewAppError(utils.ErrCodeNotFound, "Alert not found", id)
	}
	return nil
}

// --- Channel configuration operations ---

const channelColumns = `id, business_id, name, channel_type, settings, trigger_events, filters, active, created_at, updated_at`

func (s *sqlStore) SaveChannel(ctx context.Context, channel *models.ChannelConfiguration) error {
	settingsJSON, err := marshalJSON(channel.Settings)
	if err != nil {
		return err
	}
	eventsJSON, err := marshalJSON(channel.TriggerEvents)
	if err != nil {
		return err
	}
	filtersJSON, err := marshalJSON(channel.Filters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notification_channels (` + channelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)` +
		s.upsertClause("business_id, name",
			[]string{"channel_type", "settings", "trigger_events", "filters", "active", "updated_at"})

	_, err = s.exec(ctx, query, 10,
		channel.ID, channel.BusinessID, channel.Name, channel.Type, settingsJSON,
		eventsJSON, filtersJSON, channel.Active, channel.CreatedAt, channel.UpdatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save channel configuration", err.Error())
	}
	return nil
}

func (s *sqlStore) scanChannel(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.ChannelConfiguration, error) {
	var channel models.ChannelConfiguration
	var settingsJSON, eventsJSON, filtersJSON sql.NullString

	err := scanner.Scan(&channel.ID, &channel.BusinessID, &channel.Name, &channel.Type,
		&settingsJSON, &eventsJSON, &filtersJSON, &channel.Active,
		&channel.CreatedAt, &channel.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(settingsJSON, &channel.Settings); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(eventsJSON, &channel.TriggerEvents); err != nil {
		return nil, err
	}
	if filtersJSON.Valid {
		channel.Filters = &models.ChannelFilters{}
		if err := unmarshalJSON(filtersJSON, channel.Filters); err != nil {
			return nil, err
		}
	}
	return &channel, nil
}

func (s *sqlStore) GetChannel(ctx context.Context, id, businessID string) (*models.ChannelConfiguration, error) {
	row := s.queryRow(ctx, `
		SELECT `+channelColumns+` FROM notification_channels
		WHERE id = $1 AND business_id = $2`, 2, id, businessID)

	channel, err := s.scanChannel(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get channel", err.Error())
	}
	return channel, nil
}

func (s *sqlStore) GetChannelByName(ctx context.Context, businessID, name string) (*models.ChannelConfiguration, error) {
	row := s.queryRow(ctx, `
		SELECT `+channelColumns+` FROM notification_channels
		WHERE business_id = $1 AND name = $2`, 2, businessID, name)

	channel, err := s.scanChannel(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get channel by name", err.Error())
	}
	return channel, nil
}

func (s *sqlStore) GetChannels(ctx context.Context, businessID string, activeOnly bool) ([]*models.ChannelConfiguration, error) {
	query := `SELECT ` + channelColumns + ` FROM notification_channels WHERE business_id = $1`
	args := []interface{}{businessID}
	argIndex := 1
	if activeOnly {
		argIndex++
		query += fmt.Sprintf(" AND active = $%d", argIndex)
		args = append(args, true)
	}
	query += " ORDER BY name ASC"

	rows, err := s.query(ctx, query, argIndex, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query channels", err.Error())
	}
	defer rows.Close()

	var channels []*models.ChannelConfiguration
	for rows.Next() {
		channel, err := s.scanChannel(rows)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan channel", err.Error())
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

func (s *sqlStore) DeleteChannel(ctx context.Context, id, businessID string) error {
	result, err := s.exec(ctx, `
		DELETE FROM notification_channels WHERE id = $1 AND business_id = $2`, 2, id, businessID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to delete channel", err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to get rows affected", err.Error())
	}
	if rowsAffected == 0 {
		return utils.NewAppError(utils.ErrCodeNotFound, "Channel not found", id)
	}
	return nil
}

// --- Automation rule operations ---

func (s *sqlStore) SaveRule(ctx context.Context, rule *models.AutomationRule) error {
	triggerJSON, err := marshalJSON(rule.Trigger)
	if err != nil {
		return err
	}
	actionJSON, err := marshalJSON(rule.Action)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO automation_rules
			(id, business_id, name, trigger_condition, action, active, last_fired, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)` +
		s.upsertClause("id",
			[]string{"name", "trigger_condition", "action", "active", "last_fired", "updated_at"})

	_, err = s.exec(ctx, query, 9,
		rule.ID, rule.BusinessID, rule.Name, triggerJSON, actionJSON,
		rule.Active, rule.LastFired, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save automation rule", err.Error())
	}
	return nil
}

func (s *sqlStore) scanRule(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	var triggerJSON, actionJSON sql.NullString
	var lastFired sql.NullTime

	err := scanner.Scan(&rule.ID, &rule.BusinessID, &rule.Name, &triggerJSON,
		&actionJSON, &rule.Active, &lastFired, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastFired.Valid {
		rule.LastFired = &lastFired.Time
	}
	if err := unmarshalJSON(triggerJSON, &rule.Trigger); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(actionJSON, &rule.Action); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *sqlStore) GetRule(ctx context.Context, id, businessID string) (*models.AutomationRule, error) {
	row := s.queryRow(ctx, `
		SELECT id, business_id, name, trigger_condition, action, active, last_fired, created_at, updated_at
		FROM automation_rules WHERE id = $1 AND business_id = $2`, 2, id, businessID)

	rule, err := s.scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get automation rule", err.Error())
	}
	return rule, nil
}

func (s *sqlStore) GetRules(ctx context.Context, filter models.RuleFilter) ([]*models.AutomationRule, error) {
	query := `
		SELECT id, business_id, name, trigger_condition, action, active, last_fired, created_at, updated_at
		FROM automation_rules WHERE 1=1`
	args := []interface{}{}
	argIndex := 0

	if filter.BusinessID != nil {
		argIndex++
		query += fmt.Sprintf(" AND business_id = $%d", argIndex)
		args = append(args, *filter.BusinessID)
	}
	if filter.Active != nil {
		argIndex++
		query += fmt.Sprintf(" AND active = $%d", argIndex)
		args = append(args, *filter.Active)
	}

	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		argIndex++
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		argIndex++
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := s.query(ctx, query, argIndex, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query automation rules", err.Error())
	}
	defer rows.Close()

	var rules []*models.AutomationRule
	for rows.Next() {
		rule, err := s.scanRule(rows)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan automation rule", err.Error())
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// --- Metric snapshot operations ---

func (s *sqlStore) SaveRankingSnapshot(ctx context.Context, snapshot *models.RankingSnapshot) error {
	_, err := s.exec(ctx, `
		INSERT INTO ranking_snapshots (id, business_id, keyword, position, captured_at)
		VALUES ($1, $2, $3, $4, $5)`, 5,
		snapshot.ID, snapshot.BusinessID, snapshot.Keyword, snapshot.Position, snapshot.CapturedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save ranking snapshot", err.Error())
	}
	return nil
}

func (s *sqlStore) GetRankingSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.RankingSnapshot, error) {
	rows, err := s.query(ctx, `
		SELECT id, business_id, keyword, position, captured_at
		FROM ranking_snapshots
		WHERE business_id = $1 AND captured_at >= $2 AND captured_at <= $3
		ORDER BY keyword ASC, captured_at ASC`, 3, businessID, window.From, window.To)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query ranking snapshots", err.Error())
	}
	defer rows.Close()

	var snapshots []*models.RankingSnapshot
	for rows.Next() {
		var snapshot models.RankingSnapshot
		if err := rows.Scan(&snapshot.ID, &snapshot.BusinessID, &snapshot.Keyword,
			&snapshot.Position, &snapshot.CapturedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan ranking snapshot", err.Error())
		}
		snapshots = append(snapshots, &snapshot)
	}
	return snapshots, nil
}

func (s *sqlStore) SaveTrafficSnapshot(ctx context.Context, snapshot *models.TrafficSnapshot) error {
	_, err := s.exec(ctx, `
		INSERT INTO traffic_snapshots (id, business_id, resource, visits, captured_at)
		VALUES ($1, $2, $3, $4, $5)`, 5,
		snapshot.ID, snapshot.BusinessID, snapshot.Resource, snapshot.Visits, snapshot.CapturedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save traffic snapshot", err.Error())
	}
	return nil
}

func (s *sqlStore) GetTrafficSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.TrafficSnapshot, error) {
	rows, err := s.query(ctx, `
		SELECT id, business_id, resource, visits, captured_at
		FROM traffic_snapshots
		WHERE business_id = $1 AND captured_at >= $2 AND captured_at <= $3
		ORDER BY resource ASC, captured_at ASC`, 3, businessID, window.From, window.To)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query traffic snapshots", err.Error())
	}
	defer rows.Close()

	var snapshots []*models.TrafficSnapshot
	for rows.Next() {
		var snapshot models.TrafficSnapshot
		if err := rows.Scan(&snapshot.ID, &snapshot.BusinessID, &snapshot.Resource,
			&snapshot.Visits, &snapshot.CapturedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan traffic snapshot", err.Error())
		}
		snapshots = append(snapshots, &snapshot)
	}
	return snapshots, nil
}

func (s *sqlStore) SaveAuditSnapshot(ctx context.Context, snapshot *models.AuditSnapshot) error {
	_, err := s.exec(ctx, `
		INSERT INTO audit_snapshots (id, business_id, score, critical_issues, captured_at)
		VALUES ($1, $2, $3, $4, $5)`, 5,
		snapshot.ID, snapshot.BusinessID, snapshot.Score, snapshot.CriticalIssues, snapshot.CapturedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save audit snapshot", err.Error())
	}
	return nil
}

func (s *sqlStore) GetAuditSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.AuditSnapshot, error) {
	rows, err := s.query(ctx, `
		SELECT id, business_id, score, critical_issues, captured_at
		FROM audit_snapshots
		WHERE business_id = $1 AND captured_at >= $2 AND captured_at <= $3
		ORDER BY captured_at ASC`, 3, businessID, window.From, window.To)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query audit snapshots", err.Error())
	}
	defer rows.Close()

	var snapshots []*models.AuditSnapshot
	for rows.Next() {
		var snapshot models.AuditSnapshot
		if err := rows.Scan(&snapshot.ID, &snapshot.BusinessID, &snapshot.Score,
			&snapshot.CriticalIssues, &snapshot.CapturedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan audit snapshot", err.Error())
		}
		snapshots = append(snapshots, &snapshot)
	}
	return snapshots, nil
}

func (s *sqlStore) SaveCompetitorSnapshot(ctx context.Context, snapshot *models.CompetitorSnapshot) error {
	_, err := s.exec(ctx, `
		INSERT INTO competitor_snapshots (id, business_id, low_difficulty_gaps, total_gaps, captured_at)
		VALUES ($1, $2, $3, $4, $5)`, 5,
		snapshot.ID, snapshot.BusinessID, snapshot.LowDifficultyGaps, snapshot.TotalGaps, snapshot.CapturedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save competitor snapshot", err.Error())
	}
	return nil
}

func (s *sqlStore) GetCompetitorSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.CompetitorSnapshot, error) {
	rows, err := s.query(ctx, `
		SELECT id, business_id, low_difficulty_gaps, total_gaps, captured_at
		FROM competitor_snapshots
		WHERE business_id = $1 AND captured_at >= $2 AND captured_at <= $3
		ORDER BY captured_at ASC`, 3, businessID, window.From, window.To)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query competitor snapshots", err.Error())
	}
	defer rows.Close()

	var snapshots []*models.CompetitorSnapshot
	for rows.Next() {
		var snapshot models.CompetitorSnapshot
		if err := rows.Scan(&snapshot.ID, &snapshot.BusinessID, &snapshot.LowDifficultyGaps,
			&snapshot.TotalGaps, &snapshot.CapturedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan competitor snapshot", err.Error())
		}
		snapshots = append(snapshots, &snapshot)
	}
	return snapshots, nil
}

// --- Statistics ---

func (s *sqlStore) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM businesses", &stats.TotalBusinesses},
		{"SELECT COUNT(*) FROM tasks", &stats.TotalTasks},
		{"SELECT COUNT(*) FROM alerts", &stats.TotalAlerts},
		{"SELECT COUNT(*) FROM notification_channels", &stats.TotalChannels},
		{"SELECT COUNT(*) FROM automation_rules", &stats.TotalRules},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to collect storage stats", err.Error())
		}
	}

	var oldestTask, latestAlert sql.NullTime
	if err := s.db.QueryRowContext(ctx, "SELECT MIN(created_at) FROM tasks").Scan(&oldestTask); err == nil && oldestTask.Valid {
		stats.OldestTask = &oldestTask.Time
	}
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(created_at) FROM alerts").Scan(&latestAlert); err == nil && latestAlert.Valid {
		stats.LatestAlert = &latestAlert.Time
	}

	return stats, nil
}
