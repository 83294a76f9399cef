package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL,
	request    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	counters   TEXT NOT NULL,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS prospects (
	id              TEXT PRIMARY KEY,
	job_id          TEXT REFERENCES jobs(id),
	company_name    TEXT NOT NULL,
	domain          TEXT,
	status          TEXT NOT NULL DEFAULT 'new',
	icp_match_score REAL NOT NULL DEFAULT 0,
	data            TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS campaigns (
	id         TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'draft',
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sent_emails (
	id              TEXT PRIMARY KEY,
	campaign_id     TEXT NOT NULL REFERENCES campaigns(id),
	prospect_id     TEXT NOT NULL,
	sequence_number INTEGER NOT NULL DEFAULT 1,
	to_email        TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	message_id      TEXT,
	data            TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_client ON jobs(client_id);
CREATE INDEX IF NOT EXISTS idx_prospects_job_id ON prospects(job_id);
CREATE INDEX IF NOT EXISTS idx_prospects_status ON prospects(status);
CREATE INDEX IF NOT EXISTS idx_prospects_domain ON prospects(domain);
CREATE INDEX IF NOT EXISTS idx_campaigns_client ON campaigns(client_id);
CREATE INDEX IF NOT EXISTS idx_sent_emails_campaign ON sent_emails(campaign_id);
CREATE INDEX IF NOT EXISTS idx_sent_emails_prospect ON sent_emails(campaign_id, prospect_id);
CREATE INDEX IF NOT EXISTS idx_sent_emails_message_id ON sent_emails(message_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, req model.JobRequest) (*model.DiscoveryJob, error) {
	job := &model.DiscoveryJob{
		ID:        uuid.New().String(),
		ClientID:  req.ClientID,
		Request:   req,
		Status:    model.JobStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal job request")
	}
	countersJSON, err := json.Marshal(job.Counters)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal job counters")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, client_id, request, status, counters, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.ClientID, string(reqJSON), string(job.Status), string(countersJSON), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return job, nil
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job status %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) UpdateJobCounters(ctx context.Context, jobID string, counters model.JobCounters) error {
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal counters")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET counters = ?, updated_at = ? WHERE id = ?`,
		string(countersJSON), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job counters %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.DiscoveryJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, request, status, counters, error, created_at, updated_at FROM jobs WHERE id = ?`,
		jobID,
	)

	var job model.DiscoveryJob
	var reqJSON, countersJSON string
	var errMsg sql.NullString
	err := row.Scan(&job.ID, &job.ClientID, &reqJSON, &job.Status, &countersJSON, &errMsg, &job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get job")
	}

	if err := json.Unmarshal([]byte(reqJSON), &job.Request); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal job request")
	}
	if err := json.Unmarshal([]byte(countersJSON), &job.Counters); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal job counters")
	}
	job.Error = errMsg.String
	return &job, nil
}

func (s *SQLiteStore) SaveProspects(ctx context.Context, prospects []model.Prospect) error {
	if len(prospects) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save prospects")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO prospects (id, job_id, company_name, domain, status, icp_match_score, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, icp_match_score = excluded.icp_match_score,
		   data = excluded.data, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save prospects")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range prospects {
		p := &prospects[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal prospect")
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.JobID, p.CompanyName, p.Domain, string(p.Status), p.ICPMatchScore,
			string(data), p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: save prospect %s", p.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save prospects")
}

func (s *SQLiteStore) UpdateProspect(ctx context.Context, p *model.Prospect) error {
	p.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal prospect")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE prospects SET status = ?, icp_match_score = ?, data = ?, updated_at = ? WHERE id = ?`,
		string(p.Status), p.ICPMatchScore, string(data), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update prospect %s", p.ID)
	}
	return checkRowsAffected(res, "prospect", p.ID)
}

func (s *SQLiteStore) UpdateProspectStatus(ctx context.Context, prospectID string, status model.ProspectStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prospects SET status = ?, data = json_set(data, '$.status', ?), updated_at = ? WHERE id = ?`,
		string(status), string(status), time.Now().UTC(), prospectID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update prospect status %s", prospectID)
	}
	return checkRowsAffected(res, "prospect", prospectID)
}

func (s *SQLiteStore) GetProspect(ctx context.Context, prospectID string) (*model.Prospect, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM prospects WHERE id = ?`, prospectID)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("prospect not found: %s", prospectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get prospect")
	}

	var p model.Prospect
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal prospect")
	}
	return &p, nil
}

func (s *SQLiteStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT data FROM prospects WHERE 1=1`
	var args []any

	if filter.JobID != "" {
		query += ` AND job_id = ?`
		args = append(args, filter.JobID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MinScore > 0 {
		query += ` AND icp_match_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close() //nolint:errcheck

	var prospects []model.Prospect
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		var p model.Prospect
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal prospect")
		}
		prospects = append(prospects, p)
	}
	return prospects, eris.Wrap(rows.Err(), "sqlite: list prospects iterate")
}

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}

	data, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal campaign")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, client_id, status, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ClientID, string(c.Status), string(data), c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert campaign")
}

func (s *SQLiteStore) UpdateCampaign(ctx context.Context, c *model.Campaign) error {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal campaign")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = ?, data = ?, updated_at = ? WHERE id = ?`,
		string(c.Status), string(data), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update campaign %s", c.ID)
	}
	return checkRowsAffected(res, "campaign", c.ID)
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM campaigns WHERE id = ?`, campaignID)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("campaign not found: %s", campaignID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get campaign")
	}

	var c model.Campaign
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal campaign")
	}
	return &c, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context, clientID string) ([]model.Campaign, error) {
	query := `SELECT data FROM campaigns`
	var args []any
	if clientID != "" {
		query += ` WHERE client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaigns")
	}
	defer rows.Close() //nolint:errcheck

	var campaigns []model.Campaign
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan campaign")
		}
		var c model.Campaign
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "sqlite: list campaigns iterate")
}

func (s *SQLiteStore) CreateSentEmail(ctx context.Context, e *model.SentEmail) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = model.EmailStatusPending
	}

	data, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sent email")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sent_emails (id, campaign_id, prospect_id, sequence_number, to_email, status, message_id, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CampaignID, e.ProspectID, e.SequenceNumber, e.ToEmail, string(e.Status), e.MessageID, string(data), e.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert sent email")
}

func (s *SQLiteStore) UpdateSentEmail(ctx context.Context, e *model.SentEmail) error {
	data, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sent email")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sent_emails SET status = ?, message_id = ?, data = ? WHERE id = ?`,
		string(e.Status), e.MessageID, string(data), e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update sent email %s", e.ID)
	}
	return checkRowsAffected(res, "sent email", e.ID)
}

func (s *SQLiteStore) GetSentEmailByMessageID(ctx context.Context, messageID string) (*model.SentEmail, error) {
	return s.scanSentEmail(s.db.QueryRowContext(ctx,
		`SELECT data FROM sent_emails WHERE message_id = ? ORDER BY created_at DESC LIMIT 1`, messageID), messageID)
}

func (s *SQLiteStore) scanSentEmail(row *sql.Row, key string) (*model.SentEmail, error) {
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sent email not found: %s", key)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get sent email")
	}

	var e model.SentEmail
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sent email")
	}
	return &e, nil
}

func (s *SQLiteStore) ListSentEmails(ctx context.Context, campaignID string) ([]model.SentEmail, error) {
	return s.querySentEmails(ctx,
		`SELECT data FROM sent_emails WHERE campaign_id = ? ORDER BY created_at`, campaignID)
}

func (s *SQLiteStore) ListSentEmailsForProspect(ctx context.Context, campaignID, prospectID string) ([]model.SentEmail, error) {
	return s.querySentEmails(ctx,
		`SELECT data FROM sent_emails WHERE campaign_id = ? AND prospect_id = ? ORDER BY created_at`,
		campaignID, prospectID)
}

func (s *SQLiteStore) querySentEmails(ctx context.Context, query string, args ...any) ([]model.SentEmail, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sent emails")
	}
	defer rows.Close() //nolint:errcheck

	var emails []model.SentEmail
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sent email")
		}
		var e model.SentEmail
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sent email")
		}
		emails = append(emails, e)
	}
	return emails, eris.Wrap(rows.Err(), "sqlite: list sent emails iterate")
}

func (s *SQLiteStore) SentProspectIDs(ctx context.Context, campaignID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT prospect_id FROM sent_emails WHERE campaign_id = ?`, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sent prospect ids")
	}
	defer rows.Close() //nolint:errcheck

	ids := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect id")
		}
		ids[id] = struct{}{}
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: sent prospect ids iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
