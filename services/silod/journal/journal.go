package journal

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hooliganhorde/native/silo"
)

// PlanStatus tracks a journaled plan through its lifecycle.
type PlanStatus string

const (
	StatusPending PlanStatus = "PENDING"
	StatusApplied PlanStatus = "APPLIED"
	StatusStale   PlanStatus = "STALE"
)

// ErrNotFound is returned when a plan id is unknown.
var ErrNotFound = errors.New("journal: plan not found")

// PlanRecord is a computed withdrawal plan kept for later application and
// export. Amounts are decimal strings in raw units.
type PlanRecord struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Account   string     `gorm:"size:42;index"`
	Token     string     `gorm:"size:32;index"`
	Gameday   uint64     `gorm:"not null"`
	Target    string     `gorm:"not null"`
	Shortfall string     `gorm:"not null"`
	Digest    string     `gorm:"size:66"`
	Status    PlanStatus `gorm:"size:16;index"`
	Payload   []byte     `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	AppliedAt *time.Time
}

// Plan decodes the stored plan.
func (r PlanRecord) Plan() (silo.Plan, error) {
	var plan silo.Plan
	if err := json.Unmarshal(r.Payload, &plan); err != nil {
		return silo.Plan{}, fmt.Errorf("journal: decode plan %s: %w", r.ID, err)
	}
	return plan, nil
}

// Journal persists plans with gorm.
type Journal struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the journal database and migrates the schema.
func Open(driver, dsn string) (*Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: database required")
	}
	if err := db.AutoMigrate(&PlanRecord{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record stores plan as a pending record.
func (j *Journal) Record(ctx context.Context, plan silo.Plan) (PlanRecord, error) {
	payload, err := json.Marshal(plan)
	if err != nil {
		return PlanRecord{}, fmt.Errorf("journal: encode plan: %w", err)
	}
	record := PlanRecord{
		ID:        uuid.New(),
		Account:   plan.Account.Hex(),
		Token:     plan.Token,
		Gameday:   plan.Gameday,
		Target:    plan.Target.String(),
		Shortfall: plan.Shortfall.String(),
		Digest:    "0x" + hex.EncodeToString(plan.Digest[:]),
		Status:    StatusPending,
		Payload:   payload,
	}
	if err := j.db.WithContext(ctx).Create(&record).Error; err != nil {
		return PlanRecord{}, fmt.Errorf("journal: insert plan: %w", err)
	}
	return record, nil
}

// Get loads a plan by id.
func (j *Journal) Get(ctx context.Context, id uuid.UUID) (PlanRecord, error) {
	var record PlanRecord
	err := j.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PlanRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return PlanRecord{}, fmt.Errorf("journal: load plan: %w", err)
	}
	return record, nil
}

// MarkApplied transitions a pending plan to applied.
func (j *Journal) MarkApplied(ctx context.Context, id uuid.UUID) error {
	now := j.now()
	return j.transition(ctx, id, map[string]interface{}{"status": StatusApplied, "applied_at": &now})
}

// MarkStale transitions a pending plan to stale.
func (j *Journal) MarkStale(ctx context.Context, id uuid.UUID) error {
	return j.transition(ctx, id, map[string]interface{}{"status": StatusStale})
}

func (j *Journal) transition(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := j.db.WithContext(ctx).Model(&PlanRecord{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("journal: update plan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("journal: plan %s is not pending", id)
	}
	return nil
}

// List returns the most recent plans of an account, newest first.
func (j *Journal) List(ctx context.Context, account string, limit int) ([]PlanRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var records []PlanRecord
	err := j.db.WithContext(ctx).
		Where("account = ?", account).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("journal: list plans: %w", err)
	}
	return records, nil
}
