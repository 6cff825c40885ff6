package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/migrations"
	"github.com/garyjia/expense-approval/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const validSeed = `
companies:
  - id: acme
    name: Acme Corp
    currency: inr
    users:
      - id: alice
        name: Alice
        role: admin
      - id: bob
        name: Bob
        role: manager
        manager: alice
      - id: carol
        name: Carol
        email: carol@acme.test
        role: employee
        manager: bob
      - id: dave
        name: Dave
        role: employee
        manager: bob
        active: false
`

func TestParse_Valid(t *testing.T) {
	seed, err := Parse([]byte(validSeed))
	require.NoError(t, err)
	require.Len(t, seed.Companies, 1)
	assert.Len(t, seed.Companies[0].Users, 4)
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	bad := `
companies:
  - id: acme
    currency: RUPEES
    users:
      - id: alice
        role: overlord
      - id: bob
        role: employee
        manager: zed
      - id: bob
        role: employee
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.Contains(t, err.Error(), "unknown role")
	assert.Contains(t, err.Error(), "unknown manager")
	assert.Contains(t, err.Error(), "duplicate user id")
	assert.Contains(t, err.Error(), "currency")
}

func TestParse_CrossCompanyManager(t *testing.T) {
	bad := `
companies:
  - id: a
    currency: USD
    users:
      - id: boss
        role: manager
  - id: b
    currency: USD
    users:
      - id: worker
        role: employee
        manager: boss
`
	_, err := Parse([]byte(bad))
	assert.ErrorContains(t, err, "another company")
}

func TestParse_ManagerCannotDecide(t *testing.T) {
	bad := `
companies:
  - id: a
    currency: USD
    users:
      - id: peer
        role: employee
      - id: worker
        role: employee
        manager: peer
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.ErrorContains(t, err, `manager "peer" has role employee which cannot decide claims`)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("companies: [:"))
	assert.Error(t, err)
}

func TestLoader_LoadFile(t *testing.T) {
	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "dir.db")}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Migrate(context.Background(), migrations.FS)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "directory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validSeed), 0644))

	repo := repository.NewDirectoryRepository(db.DB, zap.NewNop())
	loader := NewLoader(repo, sqlite.NewTxManager(db.DB, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, loader.LoadFile(ctx, path))
	// re-applying the same seed is an update, not a duplicate insert
	require.NoError(t, loader.LoadFile(ctx, path))

	company, err := repo.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "INR", company.Currency)

	carol, err := repo.GetUser(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleEmployee, carol.Role)
	assert.Equal(t, "bob", carol.ManagerID)
	assert.True(t, carol.Active)

	dave, err := repo.GetUser(ctx, "dave")
	require.NoError(t, err)
	assert.False(t, dave.Active)
}
