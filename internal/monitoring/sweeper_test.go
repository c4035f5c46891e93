package monitoring

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emmanuel1440/task-manager-api/internal/database"
	"github.com/Emmanuel1440/task-manager-api/internal/models"
	"github.com/Emmanuel1440/task-manager-api/internal/services"
)

type sweeperEnv struct {
	sweeper    *Sweeper
	tasks      *services.TaskService
	events     *services.EventService
	user       models.User
	setTouched func(taskID string, at time.Time)
}

func newSweeperEnv(t *testing.T) sweeperEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	events := services.NewEventService(db, nil)
	tasks := services.NewTaskService(db, events)
	users := services.NewUserService(db, events)

	user, err := users.Register("Ann", "ann@x.com", "password")
	require.NoError(t, err)

	return sweeperEnv{
		sweeper: NewSweeper(tasks, events, time.Minute),
		tasks:   tasks,
		events:  events,
		user:    user,
		setTouched: func(taskID string, at time.Time) {
			_, err := db.Exec("UPDATE tasks SET updated_at = ? WHERE id = ?", at, taskID)
			require.NoError(t, err)
		},
	}
}

func TestSweep_MarksOverdue(t *testing.T) {
	env := newSweeperEnv(t)

	past := time.Now().UTC().Add(-time.Hour)
	task, err := env.tasks.Create(env.user.ID, "Late task", "", &past, "")
	require.NoError(t, err)

	env.sweeper.Sweep(time.Now().UTC())

	got, err := env.tasks.GetByID(env.user.ID, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Overdue)

	events, err := env.events.GetRecentEvents(env.user.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "task.overdue", events[0].Type)

	// A second pass must not flag or report the task again.
	env.sweeper.Sweep(time.Now().UTC())
	events, err = env.events.GetRecentEvents(env.user.ID, 10)
	require.NoError(t, err)
	var overdueCount int
	for _, e := range events {
		if e.Type == "task.overdue" {
			overdueCount++
		}
	}
	assert.Equal(t, 1, overdueCount)
}

func TestSweep_ReopensRecurring(t *testing.T) {
	env := newSweeperEnv(t)

	task, err := env.tasks.Create(env.user.ID, "Daily standup notes", "", nil, "* * * * *")
	require.NoError(t, err)

	completed := true
	_, err = env.tasks.Update(env.user.ID, task.ID, services.TaskPatch{Completed: &completed})
	require.NoError(t, err)

	// Pretend the task was completed two activations ago.
	env.setTouched(task.ID, time.Now().UTC().Add(-2*time.Minute))

	env.sweeper.Sweep(time.Now().UTC())

	got, err := env.tasks.GetByID(env.user.ID, task.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.After(time.Now().UTC().Add(-time.Second)))
}

func TestSweep_LeavesFreshlyCompletedRecurring(t *testing.T) {
	env := newSweeperEnv(t)

	task, err := env.tasks.Create(env.user.ID, "Monthly report", "", nil, "0 9 1 * *")
	require.NoError(t, err)

	completed := true
	_, err = env.tasks.Update(env.user.ID, task.ID, services.TaskPatch{Completed: &completed})
	require.NoError(t, err)

	env.sweeper.Sweep(time.Now().UTC())

	got, err := env.tasks.GetByID(env.user.ID, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
}
