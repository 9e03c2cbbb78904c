package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/dbx"
	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/metrics"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/identities"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultIdentityName    = "Socio"
	defaultIdentityBalance = "0.00"
	defaultIdentityStatus  = 1

	placeholderNationalID = "dni"
	syntheticDNIPrefix    = "SOCIO-"
	syntheticCodePrefix   = "PADRON-"
)

// Hasher turns an initial secret into a stored credential.
type Hasher interface {
	Hash(secret string) (string, error)
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(b), nil
}

// NormalizeNationalID keeps only the digits of raw.
func NormalizeNationalID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// usableNationalID returns the normalized dni and whether it may key an identity.
func usableNationalID(raw *string) (string, bool) {
	if raw == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(*raw)
	if strings.EqualFold(trimmed, placeholderNationalID) {
		return "", false
	}
	dni := NormalizeNationalID(trimmed)
	return dni, dni != ""
}

// Resolution is the outcome of one lookup strategy.
type Resolution struct {
	Found    bool
	Identity *models.Identity
}

type strategy func(ctx context.Context, repo identities.Repository, m *models.MirrorRecord) (Resolution, error)

func resolved(u *models.Identity, err error) (Resolution, error) {
	if errors.Is(err, common.ErrorNotFound) {
		return Resolution{}, nil
	}
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Found: true, Identity: u}, nil
}

func byNationalID(dni string) strategy {
	return func(ctx context.Context, repo identities.Repository, _ *models.MirrorRecord) (Resolution, error) {
		return resolved(repo.FindByNationalID(ctx, dni))
	}
}

// byBarcode and bySocioID match on the trimmed value, which is what
// newIdentity and refreshAttributes store.
func byBarcode(ctx context.Context, repo identities.Repository, m *models.MirrorRecord) (Resolution, error) {
	code := nonEmpty(m.Barcode)
	if code == nil {
		return Resolution{}, nil
	}
	return resolved(repo.FindByBarcode(ctx, *code))
}

func bySocioID(ctx context.Context, repo identities.Repository, m *models.MirrorRecord) (Resolution, error) {
	sid := nonEmpty(m.SecondaryID)
	if sid == nil {
		return Resolution{}, nil
	}
	return resolved(repo.FindBySocioID(ctx, *sid))
}

// plan returns the lookup order and the dni a new identity gets.
func plan(m *models.MirrorRecord) (strategies []strategy, dni string, synthetic bool) {
	if dni, ok := usableNationalID(m.NationalID); ok {
		return []strategy{byNationalID(dni)}, dni, false
	}
	dni = syntheticNationalID(m.ID)
	return []strategy{byBarcode, bySocioID, byNationalID(dni)}, dni, true
}

func syntheticNationalID(mirrorID int64) string {
	return syntheticDNIPrefix + strconv.FormatInt(mirrorID, 10)
}

// IdentityService materializes users rows from socios_padron rows.
type IdentityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      Hasher
	metrics     *metrics.Metrics
	logger      logging.Logger
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, hasher Hasher, mt *metrics.Metrics, logger logging.Logger) *IdentityService {
	return &IdentityService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		metrics:     mt,
		logger:      logger.With("module", "identity"),
	}
}

// EnsureIdentityByMirrorID loads the mirror row and materializes it.
func (s *IdentityService) EnsureIdentityByMirrorID(ctx context.Context, mirrorID int64) (*models.Identity, error) {
	m, err := s.repomanager.Mirror(s.db).GetByID(ctx, mirrorID)
	if err != nil {
		return nil, err
	}
	return s.EnsureIdentity(ctx, *m)
}

// EnsureIdentity returns the identity of a mirror row, creating it on first use
// and refreshing its registry-derived columns otherwise. A concurrent create
// of the same dni is absorbed by retrying once.
func (s *IdentityService) EnsureIdentity(ctx context.Context, m models.MirrorRecord) (*models.Identity, error) {
	u, err := s.ensureInTx(ctx, &m)
	if err != nil && dbx.IsUniqueViolation(err, identities.UniqueNationalIDConstraint) {
		s.logger.Info(ctx, "identity created concurrently, retrying", "mirror_id", m.ID)
		u, err = s.ensureInTx(ctx, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("ensure identity for mirror %d: %w", m.ID, err)
	}
	return u, nil
}

func (s *IdentityService) ensureInTx(ctx context.Context, m *models.MirrorRecord) (*models.Identity, error) {
	return dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Identity, error) {
		return s.ensure(ctx, s.repomanager.Identities(tx), m)
	})
}

func (s *IdentityService) ensure(ctx context.Context, repo identities.Repository, m *models.MirrorRecord) (*models.Identity, error) {
	strategies, dni, synthetic := plan(m)

	for _, find := range strategies {
		res, err := find(ctx, repo, m)
		if err != nil {
			return nil, err
		}
		if res.Found {
			u, err := repo.Refresh(ctx, res.Identity.ID, refreshAttributes(m, res.Identity))
			if err != nil {
				return nil, err
			}
			s.record(ctx, metrics.MaterializeUpdate, m, u)
			return u, nil
		}
	}

	hash, err := s.hasher.Hash(dni)
	if err != nil {
		return nil, err
	}

	u := newIdentity(m, dni, hash)
	if synthetic && u.Barcode == nil {
		code := syntheticCodePrefix + strconv.FormatInt(m.ID, 10)
		u.Barcode = &code
	}

	created, err := repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	s.record(ctx, metrics.MaterializeCreate, m, created)
	return created, nil
}

func (s *IdentityService) record(ctx context.Context, result string, m *models.MirrorRecord, u *models.Identity) {
	if s.metrics != nil {
		s.metrics.RecordMaterialization(result)
	}
	s.logger.Debug(ctx, "identity materialized", "result", result, "mirror_id", m.ID, "user_id", u.ID)
}

func newIdentity(m *models.MirrorRecord, dni, hash string) *models.Identity {
	return &models.Identity{
		Name:          displayName(m),
		NationalID:    dni,
		SocioID:       nonEmpty(m.SecondaryID),
		SocioN:        nonEmpty(m.SecondaryID),
		Barcode:       nonEmpty(m.Barcode),
		Balance:       balance(m),
		StatusCode:    statusCode(m),
		PasswordHash:  hash,
		UserType:      models.UserTypeLocal,
		AccountStatus: models.AccountStatusActive,
	}
}

// refreshAttributes keeps the stored barcode when the mirror row has none.
func refreshAttributes(m *models.MirrorRecord, current *models.Identity) identities.Attributes {
	barcode := nonEmpty(m.Barcode)
	if barcode == nil {
		barcode = current.Barcode
	}
	return identities.Attributes{
		Name:       displayName(m),
		Barcode:    barcode,
		Balance:    balance(m),
		StatusCode: statusCode(m),
		SocioID:    nonEmpty(m.SecondaryID),
		SocioN:     nonEmpty(m.SecondaryID),
	}
}

func displayName(m *models.MirrorRecord) string {
	if m.DisplayName != nil {
		if name := strings.TrimSpace(*m.DisplayName); name != "" {
			return name
		}
	}
	return defaultIdentityName
}

func balance(m *models.MirrorRecord) string {
	if m.Balance == nil || *m.Balance == "" {
		return defaultIdentityBalance
	}
	return *m.Balance
}

func statusCode(m *models.MirrorRecord) int {
	if m.StatusCode == nil {
		return defaultIdentityStatus
	}
	return *m.StatusCode
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
