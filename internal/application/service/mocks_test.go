package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/migrations"
	"github.com/garyjia/expense-approval/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

func (m *mockLogger) warnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warns)
}

type mockGateway struct {
	rateFunc func(ctx context.Context, from, to string) (float64, error)
}

func (m *mockGateway) Rate(ctx context.Context, from, to string) (float64, error) {
	if m.rateFunc != nil {
		return m.rateFunc(ctx, from, to)
	}
	return 1, nil
}

func (m *mockGateway) Rates(ctx context.Context, base string, targets []string) (map[string]float64, error) {
	return nil, errors.New("not implemented")
}

type mockExporter struct {
	exported []*entity.Claim
}

func (m *mockExporter) Export(ctx context.Context, claims []*entity.Claim) ([]byte, error) {
	m.exported = claims
	return []byte("xlsx"), nil
}

// testEnv wires the services against a throwaway SQLite file
type testEnv struct {
	claims    port.ClaimRepository
	steps     port.StepRepository
	policies  port.PolicyRepository
	directory port.DirectoryRepository
	gateway   *mockGateway
	exporter  *mockExporter
	logger    *mockLogger

	submission SubmissionService
	decision   DecisionService
	policy     PolicyService
	query      ClaimService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "service.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Migrate(context.Background(), migrations.FS)
	require.NoError(t, err)

	env := &testEnv{
		claims:    repository.NewClaimRepository(db.DB, zap.NewNop()),
		steps:     repository.NewStepRepository(db.DB, zap.NewNop()),
		policies:  repository.NewPolicyRepository(db.DB, zap.NewNop()),
		directory: repository.NewDirectoryRepository(db.DB, zap.NewNop()),
		gateway:   &mockGateway{},
		exporter:  &mockExporter{},
		logger:    &mockLogger{},
	}
	tx := sqlite.NewTxManager(db.DB, zap.NewNop())

	env.submission = NewSubmissionService(env.claims, env.steps, env.policies, env.directory, env.gateway, tx,
		[]string{"USD", "EUR", "INR"}, env.logger)
	env.decision = NewDecisionService(env.claims, env.steps, tx, env.logger)
	env.policy = NewPolicyService(env.policies, env.directory, tx, env.logger)
	env.query = NewClaimService(env.claims, env.steps, env.exporter, env.logger)

	env.seed(t)
	return env
}

// seed creates company acme (INR) with admin "admin", managers m1..m5
// reporting to admin, employees "emp" and "emp2" reporting to m1, and a
// second company "globex"
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.directory.UpsertCompany(ctx, &entity.Company{ID: "acme", Name: "Acme", Currency: "INR"}))
	require.NoError(t, e.directory.UpsertCompany(ctx, &entity.Company{ID: "globex", Name: "Globex", Currency: "USD"}))

	users := []*entity.User{
		{ID: "admin", CompanyID: "acme", Role: entity.RoleAdmin},
		{ID: "emp", CompanyID: "acme", Role: entity.RoleEmployee, ManagerID: "m1"},
		{ID: "emp2", CompanyID: "acme", Role: entity.RoleEmployee, ManagerID: "m1"},
		{ID: "orphan", CompanyID: "acme", Role: entity.RoleEmployee},
		{ID: "gone", CompanyID: "acme", Role: entity.RoleManager, ManagerID: "admin"},
		{ID: "outsider", CompanyID: "globex", Role: entity.RoleAdmin},
	}
	for i := 1; i <= 5; i++ {
		users = append(users, &entity.User{ID: fmt.Sprintf("m%d", i), CompanyID: "acme", Role: entity.RoleManager, ManagerID: "admin"})
	}
	for _, u := range users {
		u.Name = u.ID
		u.Active = u.ID != "gone"
		require.NoError(t, e.directory.UpsertUser(ctx, u))
	}
}

func (e *testEnv) user(t *testing.T, id string) *entity.User {
	t.Helper()
	u, err := e.directory.GetUser(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u, id)
	return u
}

func (e *testEnv) configure(t *testing.T, input PolicyInput) *entity.ApprovalPolicy {
	t.Helper()
	p, err := e.policy.Create(context.Background(), e.user(t, "admin"), input)
	require.NoError(t, err)
	return p
}

func (e *testEnv) submit(t *testing.T, employeeID string) *entity.Claim {
	t.Helper()
	claim, err := e.submission.Submit(context.Background(), e.user(t, employeeID), SubmitClaimInput{
		Amount:      100,
		Currency:    "INR",
		Category:    entity.CategoryTravel,
		Description: "Cab to client site",
	})
	require.NoError(t, err)
	return claim
}

func (e *testEnv) decide(t *testing.T, approverID string, claimID int64, d entity.Decision) (*DecisionOutcome, error) {
	t.Helper()
	return e.decision.Decide(context.Background(), e.user(t, approverID), claimID, DecisionInput{Decision: d})
}
