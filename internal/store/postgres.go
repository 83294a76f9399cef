package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/db"
	"github.com/sells-group/outreach-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id  TEXT NOT NULL,
	request    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	counters   JSONB NOT NULL,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prospects (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id          TEXT REFERENCES jobs(id),
	company_name    TEXT NOT NULL,
	domain          TEXT,
	status          TEXT NOT NULL DEFAULT 'new',
	icp_match_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	data            JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaigns (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'draft',
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sent_emails (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	campaign_id     TEXT NOT NULL REFERENCES campaigns(id),
	prospect_id     TEXT NOT NULL,
	sequence_number INTEGER NOT NULL DEFAULT 1,
	to_email        TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	message_id      TEXT,
	data            JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, req model.JobRequest) (*model.DiscoveryJob, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal job request")
	}
	countersJSON, err := json.Marshal(job.Counters)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal job counters")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, client_id, request, status, counters, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.ClientID, reqJSON, string(job.Status), countersJSON, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return job, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job status %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) UpdateJobCounters(ctx context.Context, jobID string, counters model.JobCounters) error {
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal counters")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET counters = $1, updated_at = $2 WHERE id = $3`,
		countersJSON, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job counters %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.DiscoveryJob, error) {
	var job model.DiscoveryJob
	var reqJSON, countersJSON []byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, client_id, request, status, counters, error, created_at, updated_at FROM jobs WHERE id = $1`,
		jobID,
	).Scan(&job.ID, &job.ClientID, &reqJSON, &job.Status, &countersJSON, &errMsg, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get job")
	}

	if err := json.Unmarshal(reqJSON, &job.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal job request")
	}
	if err := json.Unmarshal(countersJSON, &job.Counters); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal job counters")
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	return &job, nil
}

// SaveProspects bulk-upserts via a temp table and COPY, which keeps large
// discovery jobs to a single round-trip per batch.
func (s *PostgresStore) SaveProspects(ctx context.Context, prospects []model.Prospect) error {
	if len(prospects) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(prospects))
	for i := range prospects {
		p := &prospects[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal prospect")
		}
		rows = append(rows, []any{
			p.ID, p.JobID, p.CompanyName, p.Domain, string(p.Status), p.ICPMatchScore,
			data, p.CreatedAt, p.UpdatedAt,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "prospects",
		Columns: []string{
			"id", "job_id", "company_name", "domain", "status", "icp_match_score",
			"data", "created_at", "updated_at",
		},
		ConflictKeys: []string{"id"},
	}, rows)
	return eris.Wrap(err, "postgres: save prospects")
}

func (s *PostgresStore) UpdateProspect(ctx context.Context, p *model.Prospect) error {
	p.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal prospect")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE prospects SET status = $1, icp_match_score = $2, data = $3, updated_at = $4 WHERE id = $5`,
		string(p.Status), p.ICPMatchScore, data, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update prospect %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prospect not found: %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateProspectStatus(ctx context.Context, prospectID string, status model.ProspectStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE prospects SET status = $1, data = jsonb_set(data, '{status}', to_jsonb($1::text)), updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), prospectID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update prospect status %s", prospectID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prospect not found: %s", prospectID)
	}
	return nil
}

func (s *PostgresStore) GetProspect(ctx context.Context, prospectID string) (*model.Prospect, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM prospects WHERE id = $1`, prospectID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("prospect not found: %s", prospectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get prospect")
	}

	var p model.Prospect
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal prospect")
	}
	return &p, nil
}

func (s *PostgresStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT data FROM prospects WHERE 1=1`
	var args []any

	if filter.JobID != "" {
		args = append(args, filter.JobID)
		query += ` AND job_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		query += ` AND icp_match_score >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		var p model.Prospect
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal prospect")
		}
		prospects = append(prospects, p)
	}
	return prospects, eris.Wrap(rows.Err(), "postgres: list prospects iterate")
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
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
		return eris.Wrap(err, "postgres: marshal campaign")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, client_id, status, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.ClientID, string(c.Status), data, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert campaign")
}

func (s *PostgresStore) UpdateCampaign(ctx context.Context, c *model.Campaign) error {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal campaign")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1, data = $2, updated_at = $3 WHERE id = $4`,
		string(c.Status), data, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update campaign %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("campaign not found: %s", c.ID)
	}
	return nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM campaigns WHERE id = $1`, campaignID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("campaign not found: %s", campaignID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get campaign")
	}

	var c model.Campaign
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal campaign")
	}
	return &c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, clientID string) ([]model.Campaign, error) {
	query := `SELECT data FROM campaigns`
	var args []any
	if clientID != "" {
		args = append(args, clientID)
		query += ` WHERE client_id = $1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		var c model.Campaign
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "postgres: list campaigns iterate")
}

func (s *PostgresStore) CreateSentEmail(ctx context.Context, e *model.SentEmail) error {
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
		return eris.Wrap(err, "postgres: marshal sent email")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sent_emails (id, campaign_id, prospect_id, sequence_number, to_email, status, message_id, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.CampaignID, e.ProspectID, e.SequenceNumber, e.ToEmail, string(e.Status), e.MessageID, data, e.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert sent email")
}

func (s *PostgresStore) UpdateSentEmail(ctx context.Context, e *model.SentEmail) error {
	data, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sent email")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sent_emails SET status = $1, message_id = $2, data = $3 WHERE id = $4`,
		string(e.Status), e.MessageID, data, e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update sent email %s", e.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("sent email not found: %s", e.ID)
	}
	return nil
}

func (s *PostgresStore) GetSentEmailByMessageID(ctx context.Context, messageID string) (*model.SentEmail, error) {
	return s.scanSentEmail(ctx,
		`SELECT data FROM sent_emails WHERE message_id = $1 ORDER BY created_at DESC LIMIT 1`, messageID)
}

func (s *PostgresStore) scanSentEmail(ctx context.Context, query, key string) (*model.SentEmail, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("sent email not found: %s", key)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get sent email")
	}

	var e model.SentEmail
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal sent email")
	}
	return &e, nil
}

func (s *PostgresStore) ListSentEmails(ctx context.Context, campaignID string) ([]model.SentEmail, error) {
	return s.querySentEmails(ctx,
		`SELECT data FROM sent_emails WHERE campaign_id = $1 ORDER BY created_at`, campaignID)
}

func (s *PostgresStore) ListSentEmailsForProspect(ctx context.Context, campaignID, prospectID string) ([]model.SentEmail, error) {
	return s.querySentEmails(ctx,
		`SELECT data FROM sent_emails WHERE campaign_id = $1 AND prospect_id = $2 ORDER BY created_at`,
		campaignID, prospectID)
}

func (s *PostgresStore) querySentEmails(ctx context.Context, query string, args ...any) ([]model.SentEmail, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sent emails")
	}
	defer rows.Close()

	var emails []model.SentEmail
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sent email")
		}
		var e model.SentEmail
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sent email")
		}
		emails = append(emails, e)
	}
	return emails, eris.Wrap(rows.Err(), "postgres: list sent emails iterate")
}

func (s *PostgresStore) SentProspectIDs(ctx context.Context, campaignID string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT prospect_id FROM sent_emails WHERE campaign_id = $1`, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: sent prospect ids")
	}
	defer rows.Close()

	ids := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect id")
		}
		ids[id] = struct{}{}
	}
	return ids, eris.Wrap(rows.Err(), "postgres: sent prospect ids iterate")
}

