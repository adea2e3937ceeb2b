package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/tickler/pkg/api"
)

func ev(desc string, at time.Time) api.Event {
	return api.Event{ID: api.NewID(), UserID: 1, Description: desc, ScheduledAt: at}
}

func TestScoreIdenticalIsOne(t *testing.T) {
	assert.Equal(t, 1.0, Score("dentist appointment", "dentist appointment"))
	assert.Equal(t, 1.0, Score("Dentist Appointment", "dentist appointment"))
}

func TestScoreDisjointIsNearZero(t *testing.T) {
	s := Score("xyzzy", "quarterly planning review")
	assert.Less(t, s, 0.3)
}

func TestScoreWordOverlapCarries(t *testing.T) {
	// Low character similarity but half the words shared.
	s := Score("groceries", "buy groceries")
	assert.GreaterOrEqual(t, s, 0.5)
}

func TestMatchFiltersByThreshold(t *testing.T) {
	now := time.Now()
	events := []api.Event{
		ev("buy groceries", now.Add(2*time.Hour)),
		ev("quarterly planning review", now.Add(3*time.Hour)),
	}
	got := Match("groceries", events, DefaultThreshold)
	require.Len(t, got, 1)
	assert.Equal(t, "buy groceries", got[0].Description)
}

func TestMatchOrdersByScheduledTimeNotScore(t *testing.T) {
	now := time.Now()
	later := ev("buy groceries", now.Add(5*time.Hour))  // exact-ish match, later
	sooner := ev("groceries run", now.Add(1*time.Hour)) // weaker match, sooner
	got := Match("buy groceries", []api.Event{later, sooner}, DefaultThreshold)
	require.Len(t, got, 2)
	assert.Equal(t, "groceries run", got[0].Description)
	assert.Equal(t, "buy groceries", got[1].Description)
}

func TestMatchEmptyWhenNothingClose(t *testing.T) {
	now := time.Now()
	got := Match("xyzzy", []api.Event{ev("standup", now.Add(time.Hour))}, DefaultThreshold)
	assert.Empty(t, got)
}

func TestSuggest(t *testing.T) {
	now := time.Now()
	events := []api.Event{
		ev("buy groceries", now.Add(time.Hour)),
		ev("call grandma", now.Add(2*time.Hour)),
		ev("standup", now.Add(3*time.Hour)),
	}
	got := Suggest("groc", events, 2)
	require.NotEmpty(t, got)
	assert.Equal(t, "buy groceries", got[0])
}
