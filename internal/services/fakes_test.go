package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/dbx"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/assignments"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/identities"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/mirror"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/syncstate"
	"github.com/jackc/pgx/v5/pgconn"
	_ "modernc.org/sqlite"
)

// newTxDB returns a real *sql.DB so dbx.WithTx can begin and commit. The fake
// repositories ignore the handle they are bound to.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// --- mirror ---

// memMirror mimics socios_padron with its two unique indexes.
type memMirror struct {
	mu         sync.Mutex
	nextID     int64
	rows       map[int64]models.MirrorRecord
	statements [][]models.MirrorRecord
	failDni    error
	failSid    error
}

func newMemMirror() *memMirror {
	return &memMirror{rows: make(map[int64]models.MirrorRecord)}
}

func (m *memMirror) upsert(rows []models.MirrorRecord, match func(a, b models.MirrorRecord) bool, keyOf func(models.MirrorRecord) string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	for _, r := range rows {
		k := keyOf(r)
		if seen[k] {
			return 0, fmt.Errorf("ON CONFLICT DO UPDATE command cannot affect row a second time (%s)", k)
		}
		seen[k] = true
	}
	m.statements = append(m.statements, rows)

	for _, r := range rows {
		var found bool
		for id, cur := range m.rows {
			if match(cur, r) {
				r.ID = id
				r.CreatedAt = cur.CreatedAt
				r.SecondaryID, r.NationalID = cur.SecondaryID, cur.NationalID
				m.rows[id] = r
				found = true
				break
			}
		}
		if !found {
			m.nextID++
			r.ID = m.nextID
			m.rows[r.ID] = r
		}
	}
	return int64(len(rows)), nil
}

func (m *memMirror) UpsertBySecondaryID(_ context.Context, rows []models.MirrorRecord) (int64, error) {
	if m.failSid != nil {
		return 0, m.failSid
	}
	return m.upsert(rows,
		func(a, b models.MirrorRecord) bool { return a.HasSecondaryID() && *a.SecondaryID == *b.SecondaryID },
		func(r models.MirrorRecord) string { return *r.SecondaryID })
}

func (m *memMirror) UpsertByNationalID(_ context.Context, rows []models.MirrorRecord) (int64, error) {
	if m.failDni != nil {
		return 0, m.failDni
	}
	return m.upsert(rows,
		func(a, b models.MirrorRecord) bool {
			return !a.HasSecondaryID() && a.HasNationalID() && *a.NationalID == *b.NationalID
		},
		func(r models.MirrorRecord) string { return *r.NationalID })
}

func (m *memMirror) GetByID(_ context.Context, id int64) (*models.MirrorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &r, nil
}

func (m *memMirror) put(r models.MirrorRecord) models.MirrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		m.nextID++
		r.ID = m.nextID
	}
	m.rows[r.ID] = r
	return r
}

// snapshot returns rows ordered by id, without timestamps.
func (m *memMirror) snapshot() []models.MirrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MirrorRecord, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- identities ---

// memIdentities enforces UNIQUE(dni) like users_dni_key.
type memIdentities struct {
	mu           sync.Mutex
	nextID       int64
	users        map[int64]models.Identity
	beforeCreate func(u *models.Identity)
	creates      int
}

func newMemIdentities() *memIdentities {
	return &memIdentities{users: make(map[int64]models.Identity)}
}

func (r *memIdentities) find(pred func(models.Identity) bool) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Identity
	for _, u := range r.users {
		if pred(u) && (best == nil || u.ID < best.ID) {
			c := u
			best = &c
		}
	}
	if best == nil {
		return nil, common.ErrorNotFound
	}
	return best, nil
}

func (r *memIdentities) FindByNationalID(_ context.Context, dni string) (*models.Identity, error) {
	return r.find(func(u models.Identity) bool { return u.NationalID == dni })
}

func (r *memIdentities) FindByBarcode(_ context.Context, barcode string) (*models.Identity, error) {
	return r.find(func(u models.Identity) bool { return u.Barcode != nil && *u.Barcode == barcode })
}

func (r *memIdentities) FindBySocioID(_ context.Context, sid string) (*models.Identity, error) {
	return r.find(func(u models.Identity) bool { return u.SocioID != nil && *u.SocioID == sid })
}

func (r *memIdentities) Create(_ context.Context, u *models.Identity) (*models.Identity, error) {
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook(u)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.users {
		if cur.NationalID == u.NationalID {
			return nil, fmt.Errorf("db error: %w", &pgconn.PgError{Code: "23505", ConstraintName: identities.UniqueNationalIDConstraint})
		}
	}
	r.creates++
	r.nextID++
	out := *u
	out.ID = r.nextID
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	r.users[out.ID] = out
	return &out, nil
}

func (r *memIdentities) Refresh(_ context.Context, id int64, a identities.Attributes) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Name, u.Barcode, u.Balance, u.StatusCode, u.SocioID, u.SocioN = a.Name, a.Barcode, a.Balance, a.StatusCode, a.SocioID, a.SocioN
	u.UpdatedAt = time.Now()
	r.users[id] = u
	out := u
	return &out, nil
}

func (r *memIdentities) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *memIdentities) insert(u models.Identity) models.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = u
	return u
}

// --- assignments ---

type memAssignments struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]models.StudentAssignment
	links   map[[2]int64]bool
	getErr  error
}

func newMemAssignments() *memAssignments {
	return &memAssignments{rows: make(map[int64]models.StudentAssignment), links: make(map[[2]int64]bool)}
}

func (r *memAssignments) GetByID(_ context.Context, id int64) (*models.StudentAssignment, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (r *memAssignments) IsSocioLinked(_ context.Context, professorID, mirrorID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.links[[2]int64{professorID, mirrorID}], nil
}

func (r *memAssignments) FirstOrCreate(_ context.Context, professorID, studentID int64, assignedBy *int64) (*models.StudentAssignment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ProfessorID == professorID && a.StudentID == studentID {
			out := a
			return &out, false, nil
		}
	}
	r.nextID++
	a := models.StudentAssignment{
		ID: r.nextID, ProfessorID: professorID, StudentID: studentID, AssignedBy: assignedBy,
		Status: models.AssignmentStatusActive, StartDate: time.Now(),
	}
	r.rows[a.ID] = a
	out := a
	return &out, true, nil
}

func (r *memAssignments) Reactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.Status = models.AssignmentStatusActive
	a.EndDate = nil
	r.rows[id] = a
	return nil
}

func (r *memAssignments) put(a models.StudentAssignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID > r.nextID {
		r.nextID = a.ID
	}
	r.rows[a.ID] = a
}

// --- manager ---

type fakeManager struct {
	mirror      *memMirror
	identities  *memIdentities
	states      *memStates
	assignments *memAssignments
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		mirror:      newMemMirror(),
		identities:  newMemIdentities(),
		states:      newMemStates(),
		assignments: newMemAssignments(),
	}
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Mirror(dbx.DBTX) mirror.Repository           { return m.mirror }
func (m *fakeManager) Identities(dbx.DBTX) identities.Repository   { return m.identities }
func (m *fakeManager) SyncStates(dbx.DBTX) syncstate.Store         { return m.states }
func (m *fakeManager) Assignments(dbx.DBTX) assignments.Repository { return m.assignments }

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

// memStates is a process-local syncstate.Store.
type memStates struct {
	mu     sync.RWMutex
	values map[string]string
}

func newMemStates() *memStates {
	return &memStates{values: make(map[string]string)}
}

func (s *memStates) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", common.ErrorNotFound
	}
	return v, nil
}

func (s *memStates) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
