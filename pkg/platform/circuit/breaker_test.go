package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// outcome is one probe or live call against the shared store: 'F' failed,
// 'S' succeeded.
func replay(b *Breaker, outcomes string) (opened, closed int) {
	for _, o := range outcomes {
		var change Change
		if o == 'F' {
			_, change = b.RecordFailure()
		} else {
			_, change = b.RecordSuccess()
		}
		if change.Opened {
			opened++
		}
		if change.Closed {
			closed++
		}
	}
	return opened, closed
}

func TestBreakerStartsClosed(t *testing.T) {
	b := New("shared-store")
	assert.Equal(t, "shared-store", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Failures())
}

func TestBreakerSequences(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		successes  int
		outcomes   string
		wantOpen   bool
		wantOpened int
		wantClosed int
	}{
		{name: "opens on the threshold failure", failures: 3, successes: 2, outcomes: "FFF", wantOpen: true, wantOpened: 1},
		{name: "stays closed below the threshold", failures: 3, successes: 2, outcomes: "FF", wantOpen: false},
		{name: "success breaks a failure run", failures: 3, successes: 2, outcomes: "FFSFF", wantOpen: false},
		{name: "needs consecutive successes to close", failures: 1, successes: 2, outcomes: "FSS", wantOpen: false, wantOpened: 1, wantClosed: 1},
		{name: "failure while open restarts the success run", failures: 1, successes: 3, outcomes: "FSSFSS", wantOpen: true, wantOpened: 1},
		{name: "repeat failures while open report no new transition", failures: 1, successes: 2, outcomes: "FFFF", wantOpen: true, wantOpened: 1},
		{name: "flapping store", failures: 2, successes: 1, outcomes: "FFSFFS", wantOpen: false, wantOpened: 2, wantClosed: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("shared-store", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.successes))
			opened, closed := replay(b, tt.outcomes)
			assert.Equal(t, tt.wantOpen, b.IsOpen())
			assert.Equal(t, tt.wantOpened, opened)
			assert.Equal(t, tt.wantClosed, closed)
		})
	}
}

func TestBreakerReturnValues(t *testing.T) {
	b := New("shared-store", WithFailureThreshold(1), WithSuccessThreshold(1))

	useFallback, _ := b.RecordFailure()
	assert.True(t, useFallback, "open breaker tells the caller to fall back")

	usePrimary, _ := b.RecordSuccess()
	assert.True(t, usePrimary, "closed breaker sends calls to the store")
}

func TestBreakerFailuresAndReset(t *testing.T) {
	b := New("shared-store", WithFailureThreshold(3))
	replay(b, "FF")
	assert.Equal(t, 2, b.Failures())

	b.Reset()
	assert.Zero(t, b.Failures())
	assert.Equal(t, StateClosed, b.State())
}

func TestInvalidThresholdsKeepDefaults(t *testing.T) {
	b := New("shared-store", WithFailureThreshold(0), WithSuccessThreshold(-1))
	opened, _ := replay(b, "FFFF")
	assert.Zero(t, opened)
	opened, _ = replay(b, "F")
	assert.Equal(t, 1, opened)
}
