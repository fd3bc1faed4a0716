package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/bootstrap"
	"github.com/fastygo/dailyquest/internal/config"
	"github.com/fastygo/dailyquest/internal/testutil"
	"github.com/fastygo/dailyquest/repository"
	"github.com/fastygo/dailyquest/repository/memory"
)

const catalog = `quests:
  - id: walk
    title: Walk 5 km
    points: 3
  - title: Drink water
    description: Two litres
    points: 1
  - id: retired
    title: Old quest
    points: 2
    active: false
`

func memoryOptions(store *memory.Store) *RootOptions {
	return &RootOptions{
		loadConfig: func() (*config.Config, error) {
			return &config.Config{
				Store:  config.StoreConfig{Driver: config.StoreMemory},
				Rules:  config.RulesConfig{DailyQuota: 3, ValidationThreshold: 5, DailyValidationCap: 10, CapBonusPoints: 1, Timezone: "UTC", Location: time.UTC},
				Notify: config.NotifyConfig{Enabled: false},
			}, nil
		},
		openStore: func(context.Context, *config.Config, *zap.Logger) (repository.Store, bootstrap.CloseFunc, error) {
			return store, func(context.Context) error { return nil }, nil
		},
	}
}

func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommandWiring(t *testing.T) {
	cmd := NewRootCommand()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["seed"])
	assert.True(t, names["sweep"])
	assert.NotNil(t, cmd.PersistentFlags().Lookup("store"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestParseSeed(t *testing.T) {
	quests, err := ParseSeed([]byte(catalog))
	require.NoError(t, err)
	require.Len(t, quests, 3)
	assert.Equal(t, domain.Quest{ID: "walk", Title: "Walk 5 km", Points: 3, IsActive: true}, quests[0])
	assert.Empty(t, quests[1].ID)
	assert.Equal(t, "Two litres", quests[1].Description)
	assert.False(t, quests[2].IsActive)
}

func TestParseSeedRejects(t *testing.T) {
	tests := map[string]string{
		"empty":         "quests: []\n",
		"unknown field": "quests:\n  - title: x\n    points: 1\n    reward: 2\n",
		"not yaml":      "quests: [\n",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSeed([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestSeedImportsIntoStore(t *testing.T) {
	store := memory.New()
	out, err := execute(t, memoryOptions(store), "seed", writeCatalog(t, catalog))
	require.NoError(t, err)
	assert.Contains(t, out, "3 quests imported")

	active, err := store.Quests().ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestSeedDryRunWritesNothing(t *testing.T) {
	store := memory.New()
	out, err := execute(t, memoryOptions(store), "seed", "--dry-run", writeCatalog(t, catalog))
	require.NoError(t, err)
	assert.Contains(t, out, "3 quests valid")

	active, err := store.Quests().ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSeedRejectsInvalidQuest(t *testing.T) {
	_, err := execute(t, memoryOptions(memory.New()), "seed", writeCatalog(t, "quests:\n  - title: Free\n    points: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quest #1")
}

func TestSweepSettlesBacklog(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()
	quest := testutil.SeedQuests(t, store.Quests(), 1, 4)[0]
	require.NoError(t, store.Users().Ensure(ctx, &domain.User{ID: "owner"}))
	a := testutil.SubmittedAttempt(t, store.Attempts(), "owner", quest, now)
	for _, voter := range []string{"a", "b", "c", "d", "e"} {
		_, err := store.Attempts().AddValidation(ctx, a.ID, voter, 5, now)
		require.NoError(t, err)
	}

	out, err := execute(t, memoryOptions(store), "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "1 attempts settled")

	owner, err := store.Users().GetByID(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 4, owner.Points)
}

func TestMigrateRejectsMemoryDriver(t *testing.T) {
	_, err := execute(t, memoryOptions(memory.New()), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no schema")

	_, err = execute(t, memoryOptions(memory.New()), "migrate", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown direction")
}
