package overseer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLaborWithPhaseUpdatesTransitionTime(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	l := Labor{Name: "a", Phase: PhaseSpawning, CreatedAt: created, LastTransitionAt: created}

	now := time.Now()
	next := l.withPhase(PhaseConnecting, now)

	assert.Equal(t, PhaseConnecting, next.Phase)
	assert.Equal(t, now, next.LastTransitionAt)
	assert.Equal(t, created, next.CreatedAt, "withPhase never touches CreatedAt")
	assert.Equal(t, PhaseSpawning, l.Phase, "withPhase returns a copy, the receiver is untouched")
}

func TestLaborActive(t *testing.T) {
	active := Labor{Phase: PhaseActive}
	terminated := Labor{Phase: PhaseTerminated}

	assert.True(t, active.active())
	assert.False(t, terminated.active())
}
