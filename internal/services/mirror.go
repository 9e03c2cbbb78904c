package services

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/dmitrijs2005/gymbridge/internal/dbx"
	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/repomanager"
)

// DefaultUpsertChunkSize bounds the rows of one INSERT statement.
const DefaultUpsertChunkSize = 500

// UpsertResult counts the rows of one batch per conflict key. Counts are taken
// after in-batch deduplication.
type UpsertResult struct {
	BySecondaryID int
	ByNationalID  int
	Skipped       int
	Affected      int64
}

// MirrorService persists mapped registry rows into socios_padron.
type MirrorService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	chunkSize   int
	logger      logging.Logger
}

func NewMirrorService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *MirrorService {
	return &MirrorService{
		db:          db,
		repomanager: m,
		chunkSize:   DefaultUpsertChunkSize,
		logger:      logger.With("module", "mirror"),
	}
}

// UpsertBatch validates, partitions and writes rows in a single transaction.
// Rows with a sid conflict on sid. Rows without sid but with dni conflict on dni.
// Rows with neither are skipped.
func (s *MirrorService) UpsertBatch(ctx context.Context, rows []models.MirrorRecord) (UpsertResult, error) {
	for i := range rows {
		if err := checkScalarColumns(i, &rows[i], rows[i].ColumnValues()); err != nil {
			s.logger.Error(ctx, "mirror row rejected", "error", err)
			return UpsertResult{}, err
		}
	}

	bySid, byDni, skipped := partition(rows)
	res := UpsertResult{BySecondaryID: len(bySid), ByNationalID: len(byDni), Skipped: skipped}
	if skipped > 0 {
		s.logger.Warn(ctx, "mirror rows without sid and dni skipped", "count", skipped)
	}
	if len(bySid) == 0 && len(byDni) == 0 {
		return res, nil
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Mirror(tx)

		n, err := s.writeChunks(ctx, bySid, repo.UpsertBySecondaryID)
		if err != nil {
			return fmt.Errorf("upsert by sid: %w", err)
		}
		res.Affected += n

		n, err = s.writeChunks(ctx, byDni, repo.UpsertByNationalID)
		if err != nil {
			return fmt.Errorf("upsert by dni: %w", err)
		}
		res.Affected += n
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}

type upsertFunc func(ctx context.Context, rows []models.MirrorRecord) (int64, error)

func (s *MirrorService) writeChunks(ctx context.Context, rows []models.MirrorRecord, fn upsertFunc) (int64, error) {
	var total int64
	for start := 0; start < len(rows); start += s.chunkSize {
		end := min(start+s.chunkSize, len(rows))
		n, err := fn(ctx, rows[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// partition splits rows by conflict key and collapses duplicate keys. The last
// occurrence of a key wins and takes the slot of the first.
func partition(rows []models.MirrorRecord) (bySid, byDni []models.MirrorRecord, skipped int) {
	sidAt := make(map[string]int)
	dniAt := make(map[string]int)

	for _, r := range rows {
		switch {
		case r.HasSecondaryID():
			if i, ok := sidAt[*r.SecondaryID]; ok {
				bySid[i] = r
				continue
			}
			sidAt[*r.SecondaryID] = len(bySid)
			bySid = append(bySid, r)
		case r.HasNationalID():
			if i, ok := dniAt[*r.NationalID]; ok {
				byDni[i] = r
				continue
			}
			dniAt[*r.NationalID] = len(byDni)
			byDni = append(byDni, r)
		default:
			skipped++
		}
	}
	return bySid, byDni, skipped
}

// checkScalarColumns rejects any column value that is not nil, a bool, a number,
// a string, or a pointer to one of those.
func checkScalarColumns(index int, r *models.MirrorRecord, values []any) error {
	for i, v := range values {
		if isScalar(v) {
			continue
		}
		col := fmt.Sprintf("#%d", i)
		if i < len(models.MirrorColumns) {
			col = models.MirrorColumns[i]
		}
		return &MirrorContractViolation{
			RowIndex:    index,
			NationalID:  deref(r.NationalID),
			SecondaryID: deref(r.SecondaryID),
			Column:      col,
			Type:        fmt.Sprintf("%T", v),
		}
	}
	return nil
}

func isScalar(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
