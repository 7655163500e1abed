package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"idhub/internal/domain"
	"idhub/pkg/platform/sentinel"
	"idhub/pkg/platform/tx"
	"idhub/pkg/requestcontext"
)

// Schema is the DDL for the identity store tables.
//
//go:embed schema.sql
var Schema string

// Postgres persists entities and registration requests in PostgreSQL. Every
// method joins the *sql.Tx carried in context when one is present, so the
// acceptance pipeline's mutations commit or roll back as one unit.
type Postgres struct {
	db      *sql.DB
	classes *ClassRegistry
}

func NewPostgres(db *sql.DB, classes *ClassRegistry) *Postgres {
	if classes == nil {
		classes = NewClassRegistry()
	}
	return &Postgres{db: db, classes: classes}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (p *Postgres) conn(ctx context.Context) execer {
	if dbTx, ok := tx.From(ctx); ok {
		return dbTx
	}
	return p.db
}

func (p *Postgres) CreateEntity(ctx context.Context, initial domain.IdentityParam, credentialRequirement string,
	initialState domain.EntityState, rootAttrs []domain.Attribute) (domain.EntityID, error) {
	conn := p.conn(ctx)
	now := requestcontext.Now(ctx)

	entityID := domain.NewEntityID()
	_, err := conn.ExecContext(ctx, `
		INSERT INTO entities (id, state, credential_requirement, created_at)
		VALUES ($1, $2, $3, $4)
	`, entityID.String(), string(initialState), credentialRequirement, now)
	if err != nil {
		return domain.EntityID{}, fmt.Errorf("create entity: %w", err)
	}
	if err := p.InsertIdentity(ctx, initial, entityID); err != nil {
		return domain.EntityID{}, err
	}
	if len(rootAttrs) > 0 {
		if err := p.SetAttributes(ctx, entityID, rootAttrs); err != nil {
			return domain.EntityID{}, err
		}
	}
	return entityID, nil
}

func (p *Postgres) InsertIdentity(ctx context.Context, id domain.IdentityParam, entity domain.EntityID) error {
	_, err := p.conn(ctx).ExecContext(ctx, `
		INSERT INTO identities (entity_id, type_id, value, confirmed, remote_idp, translation_profile)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entity.String(), id.TypeID, id.Value, id.Confirmed, id.RemoteIdP, id.TranslationProfile)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("identity %s:%s already taken: %w", id.TypeID, id.Value, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (p *Postgres) AddGroupMember(ctx context.Context, path string, entity domain.EntityID) error {
	conn := p.conn(ctx)

	var exists bool
	err := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM groups WHERE path = $1)`, path).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check group %s: %w", path, err)
	}
	if !exists {
		return fmt.Errorf("group %s: %w", path, sentinel.ErrNotFound)
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO group_members (group_path, entity_id, added_at)
		VALUES ($1, $2, $3)
	`, path, entity.String(), requestcontext.Now(ctx))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("entity already member of %s: %w", path, sentinel.ErrConflict)
		}
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (p *Postgres) SetAttributes(ctx context.Context, entity domain.EntityID, attrs []domain.Attribute) error {
	conn := p.conn(ctx)
	for _, attr := range attrs {
		values, err := json.Marshal(attr.Values)
		if err != nil {
			return fmt.Errorf("marshal attribute %s values: %w", attr.Name, err)
		}
		_, err = conn.ExecContext(ctx, `
			INSERT INTO entity_attributes (entity_id, name, group_path, attr_values, visibility, remote_idp, translation_profile)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (entity_id, name, group_path) DO UPDATE SET
				attr_values = EXCLUDED.attr_values,
				visibility = EXCLUDED.visibility,
				remote_idp = EXCLUDED.remote_idp,
				translation_profile = EXCLUDED.translation_profile
		`, entity.String(), attr.Name, attr.GroupPath, values, string(attr.Visibility), attr.RemoteIdP, attr.TranslationProfile)
		if err != nil {
			return fmt.Errorf("set attribute %s in %s: %w", attr.Name, attr.GroupPath, err)
		}
	}
	return nil
}

func (p *Postgres) CheckAttributeClassConsistency(_ context.Context, attrs []domain.Attribute, group string, classes []string) error {
	return p.classes.Check(attrs, group, classes)
}

func (p *Postgres) SetAttributeClasses(ctx context.Context, entity domain.EntityID, group string, classes []string) error {
	_, err := p.conn(ctx).ExecContext(ctx, `
		INSERT INTO entity_attribute_classes (entity_id, group_path, classes)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id, group_path) DO UPDATE SET classes = EXCLUDED.classes
	`, entity.String(), group, pq.Array(classes))
	if err != nil {
		return fmt.Errorf("set attribute classes in %s: %w", group, err)
	}
	return nil
}

func (p *Postgres) SetCredential(ctx context.Context, entity domain.EntityID, credentialID, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash credential secret: %w", err)
	}
	_, err = p.conn(ctx).ExecContext(ctx, `
		INSERT INTO entity_credentials (entity_id, credential_id, secret_hash, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_id, credential_id) DO UPDATE SET
			secret_hash = EXCLUDED.secret_hash,
			updated_at = EXCLUDED.updated_at
	`, entity.String(), credentialID, string(hash), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("set credential %s: %w", credentialID, err)
	}
	return nil
}

func (p *Postgres) ScheduleEntityChange(ctx context.Context, entity domain.EntityID, change domain.ScheduledChange) error {
	_, err := p.conn(ctx).ExecContext(ctx, `
		INSERT INTO entity_scheduled_changes (entity_id, operation, scheduled_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id) DO UPDATE SET
			operation = EXCLUDED.operation,
			scheduled_time = EXCLUDED.scheduled_time
	`, entity.String(), string(change.Operation), change.ScheduledTime)
	if err != nil {
		return fmt.Errorf("schedule entity change: %w", err)
	}
	return nil
}

// --- RequestStore ---

func (p *Postgres) Create(ctx context.Context, req *domain.RegistrationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = p.conn(ctx).ExecContext(ctx, `
		INSERT INTO registration_requests (id, form_name, status, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.ID.String(), req.FormName, string(req.Status), payload, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("request %s: %w", req.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id domain.RequestID) (*domain.RegistrationRequest, error) {
	var (
		payload []byte
		status  string
	)
	err := p.conn(ctx).QueryRowContext(ctx, `
		SELECT payload, status FROM registration_requests WHERE id = $1
	`, id.String()).Scan(&payload, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	var req domain.RegistrationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("unmarshal request %s: %w", id, err)
	}
	// status lives in its own column so UpdateStatus can CAS it without
	// rewriting the payload
	req.Status = domain.RequestStatus(status)
	return &req, nil
}

func (p *Postgres) UpdateStatus(ctx context.Context, id domain.RequestID, from, to domain.RequestStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("request %s cannot move %s -> %s: %w", id, from, to, sentinel.ErrInvalidState)
	}
	res, err := p.conn(ctx).ExecContext(ctx, `
		UPDATE registration_requests SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, string(to), requestcontext.Now(ctx), id.String(), string(from))
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := p.conn(ctx).QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM registration_requests WHERE id = $1)`, id.String()).Scan(&exists); err != nil {
			return fmt.Errorf("update request status: %w", err)
		}
		if !exists {
			return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
		}
		return fmt.Errorf("request %s is not %s: %w", id, from, sentinel.ErrInvalidState)
	}
	return nil
}

func (p *Postgres) AppendComments(ctx context.Context, id domain.RequestID, comments []domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	raw, err := json.Marshal(comments)
	if err != nil {
		return fmt.Errorf("marshal comments: %w", err)
	}
	// A payload written before any comment carries JSON null there, which
	// jsonb concatenation rejects; normalize to an empty array first.
	res, err := p.conn(ctx).ExecContext(ctx, `
		UPDATE registration_requests
		SET payload = jsonb_set(payload, '{Comments}',
			CASE WHEN jsonb_typeof(payload->'Comments') = 'array'
			     THEN payload->'Comments' ELSE '[]'::jsonb END || $1::jsonb),
		    updated_at = $2
		WHERE id = $3
	`, raw, requestcontext.Now(ctx), id.String())
	if err != nil {
		return fmt.Errorf("append comments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append comments: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

// RegisterGroup inserts a group path; used by tests and bootstrap.
func (p *Postgres) RegisterGroup(ctx context.Context, path string) error {
	_, err := p.conn(ctx).ExecContext(ctx, `
		INSERT INTO groups (path) VALUES ($1) ON CONFLICT (path) DO NOTHING
	`, path)
	if err != nil {
		return fmt.Errorf("register group %s: %w", path, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
