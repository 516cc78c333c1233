package experience

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMax = 10

// newStores returns every Store implementation under test.
func newStores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "agentd.db"), testMax, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(testMax, nil),
		"sqlite": sqliteStore,
	}
}

func newExperience(task string, success bool, ts time.Time) *Experience {
	return &Experience{
		ID:              uuid.New().String(),
		TaskDescription: task,
		Input:           task,
		Output:          "output for " + task,
		Mode:            ModeOffline,
		Model:           "local-stub",
		Reasoning:       *NewThoughtStream(uuid.New().String()),
		Success:         success,
		Timestamp:       ts,
	}
}

func TestStoreAndGetAll(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store.Initialize(ctx)

			base := time.Now()
			for i := 0; i < 3; i++ {
				exp := newExperience(fmt.Sprintf("task %d", i), true, base.Add(time.Duration(i)*time.Second))
				require.NoError(t, store.Store(ctx, exp))
			}

			all := store.GetAll(ctx)
			require.Len(t, all, 3)
			// Insertion order, oldest first.
			assert.Equal(t, "task 0", all[0].TaskDescription)
			assert.Equal(t, "task 2", all[2].TaskDescription)
		})
	}
}

func TestStoreValidatesRecord(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			err := store.Store(ctx, &Experience{ID: uuid.New().String(), Mode: ModeOffline})
			assert.ErrorIs(t, err, ErrEmptyTask)

			err = store.Store(ctx, &Experience{ID: uuid.New().String(), TaskDescription: "t", Mode: "hybrid"})
			assert.ErrorIs(t, err, ErrInvalidMode)
		})
	}
}

func TestGetByID(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := newExperience("find me", true, time.Now())
			require.NoError(t, store.Store(ctx, exp))

			got, err := store.GetByID(ctx, exp.ID)
			require.NoError(t, err)
			assert.Equal(t, exp.TaskDescription, got.TaskDescription)

			_, err = store.GetByID(ctx, "missing-id")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestEviction(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now()

			// Seed to capacity with strictly increasing timestamps.
			ids := make([]string, testMax)
			for i := 0; i < testMax; i++ {
				exp := newExperience(fmt.Sprintf("seed %02d", i), true, base.Add(time.Duration(i)*time.Second))
				ids[i] = exp.ID
				require.NoError(t, store.Store(ctx, exp))
			}

			newest := newExperience("overflow", true, base.Add(time.Hour))
			require.NoError(t, store.Store(ctx, newest))

			all := store.GetAll(ctx)
			// floor(max*0.8) survivors plus the new record.
			require.Len(t, all, retainCount(testMax)+1)

			surviving := make(map[string]bool, len(all))
			for _, e := range all {
				surviving[e.ID] = true
			}
			assert.True(t, surviving[newest.ID], "new record must survive")
			// The newest floor(max*0.8) seeds survive; the oldest 20% drop.
			dropped := testMax - retainCount(testMax)
			for i, id := range ids {
				if i < dropped {
					assert.False(t, surviving[id], "seed %d should be evicted", i)
				} else {
					assert.True(t, surviving[id], "seed %d should survive", i)
				}
			}
		})
	}
}

func TestSearchContainment(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := newExperience("Summarize the quarterly report", true, time.Now())
			require.NoError(t, store.Store(ctx, exp))

			assert.Len(t, store.Search(ctx, "quarterly"), 1)
			assert.Len(t, store.Search(ctx, "QUARTERLY"), 1)
			assert.Empty(t, store.Search(ctx, "zzz-nomatch"))
		})
	}
}

func TestSearchMatchesInputAndOutput(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := newExperience("plain task", true, time.Now())
			exp.Output = "the Needle is here"
			require.NoError(t, store.Store(ctx, exp))

			assert.Len(t, store.Search(ctx, "needle"), 1)
		})
	}
}

func TestFilters(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a := newExperience("task a", true, time.Now())
			a.Model = "gpt-4o"
			a.Mode = ModeCloud
			b := newExperience("task b", true, time.Now())
			require.NoError(t, store.Store(ctx, a))
			require.NoError(t, store.Store(ctx, b))

			assert.Len(t, store.FilterByModel(ctx, "gpt-4o"), 1)
			assert.Empty(t, store.FilterByModel(ctx, "gpt"), "model filter is exact, not substring")
			assert.Len(t, store.FilterByMode(ctx, ModeCloud), 1)
			assert.Len(t, store.FilterByMode(ctx, ModeOffline), 1)
		})
	}
}

func TestSuccessRate(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			succ, fail, rate := store.SuccessRate(ctx)
			assert.Equal(t, 0, succ)
			assert.Equal(t, 0, fail)
			assert.Equal(t, 0.0, rate)

			for i := 0; i < 3; i++ {
				require.NoError(t, store.Store(ctx, newExperience(fmt.Sprintf("ok %d", i), true, time.Now())))
			}
			require.NoError(t, store.Store(ctx, newExperience("bad", false, time.Now())))

			succ, fail, rate = store.SuccessRate(ctx)
			assert.Equal(t, 3, succ)
			assert.Equal(t, 1, fail)
			assert.InDelta(t, 75.0, rate, 0.0001)
		})
	}
}

func TestIdempotentDelete(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Store(ctx, newExperience("keep", true, time.Now())))

			require.NoError(t, store.Delete(ctx, "no-such-id"))
			assert.Len(t, store.GetAll(ctx), 1)
			require.NoError(t, store.Delete(ctx, "no-such-id"))
			assert.Len(t, store.GetAll(ctx), 1)
		})
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := newExperience("delete me", true, time.Now())
			require.NoError(t, store.Store(ctx, exp))
			require.NoError(t, store.Delete(ctx, exp.ID))

			_, err := store.GetByID(ctx, exp.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestClearAllAndStats(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store.Initialize(ctx)

			require.NoError(t, store.Store(ctx, newExperience("a", true, time.Now())))
			require.NoError(t, store.Store(ctx, newExperience("b", false, time.Now())))

			st := store.Stats(ctx)
			assert.Equal(t, 2, st.TotalExperiences)
			assert.Positive(t, st.TotalMemorySize)

			require.NoError(t, store.ClearAll(ctx))
			assert.Empty(t, store.GetAll(ctx))

			st = store.Stats(ctx)
			assert.Equal(t, 0, st.TotalExperiences)
			assert.False(t, st.LastCleanup.IsZero(), "ClearAll must stamp lastCleanup")
		})
	}
}

func TestExportRoundTrips(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Store(ctx, newExperience("exported", true, time.Now())))

			out, err := store.Export(ctx)
			require.NoError(t, err)

			var decoded []Experience
			require.NoError(t, json.Unmarshal([]byte(out), &decoded))
			require.Len(t, decoded, 1)
			assert.Equal(t, "exported", decoded[0].TaskDescription)
		})
	}
}

func TestReasoningPersistedWithRecord(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			exp := newExperience("with trace", true, time.Now())
			exp.Reasoning.Append(ReasoningPhase{
				Type: PhasePlan, Timestamp: time.Now(), Content: "planned",
				Details: map[string]any{"taskType": "general"},
			})
			exp.Reasoning.Finalize()
			require.NoError(t, store.Store(ctx, exp))

			got, err := store.GetByID(ctx, exp.ID)
			require.NoError(t, err)
			require.Len(t, got.Reasoning.Phases, 1)
			assert.Equal(t, PhasePlan, got.Reasoning.Phases[0].Type)
			assert.NotNil(t, got.Reasoning.EndTime)
		})
	}
}
