package overseer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetkeep/overseer/internal/adapter"
)

func TestApplyDefaults(t *testing.T) {
	var s Spec
	s.applyDefaults()

	assert.Equal(t, SimpleOneForOne, s.Strategy)
	assert.Equal(t, 8, s.MaxNodes)
	assert.Equal(t, 30*time.Second, s.ConnTimeout)
	assert.Equal(t, 30*time.Second, s.PairTimeout)
	assert.NotEmpty(t, s.OverseerID)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	s := Spec{
		Strategy:    SimpleOneForOne,
		MaxNodes:    2,
		ConnTimeout: time.Second,
		PairTimeout: time.Second,
		OverseerID:  "fixed",
	}
	s.applyDefaults()

	assert.Equal(t, 2, s.MaxNodes)
	assert.Equal(t, "fixed", s.OverseerID)
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	s := Spec{Strategy: "bogus", Adapter: adapter.NewFake("t"), Dial: dummyDialer, Release: ReleaseRef{URL: "file:///tmp/x"}}
	err := s.validate()
	assert.ErrorIs(t, err, ErrBadStartSpec)
}

func TestValidateRejectsOneForOne(t *testing.T) {
	s := Spec{Strategy: OneForOne, Adapter: adapter.NewFake("t"), Dial: dummyDialer, Release: ReleaseRef{URL: "file:///tmp/x"}}
	err := s.validate()
	assert.ErrorIs(t, err, ErrBadStartSpec)
}

func TestValidateRequiresAdapter(t *testing.T) {
	s := Spec{Strategy: SimpleOneForOne, Dial: dummyDialer, Release: ReleaseRef{URL: "file:///tmp/x"}}
	err := s.validate()
	assert.ErrorIs(t, err, ErrBadStartSpec)
}

func TestValidateRequiresDial(t *testing.T) {
	s := Spec{Strategy: SimpleOneForOne, Adapter: adapter.NewFake("t"), Release: ReleaseRef{URL: "file:///tmp/x"}}
	err := s.validate()
	assert.ErrorIs(t, err, ErrBadStartSpec)
}

func TestValidateRequiresReleaseURL(t *testing.T) {
	s := Spec{Strategy: SimpleOneForOne, Adapter: adapter.NewFake("t"), Dial: dummyDialer}
	err := s.validate()
	assert.ErrorIs(t, err, ErrBadStartSpec)
}

func TestValidateAcceptsWellFormedSpec(t *testing.T) {
	s := Spec{Strategy: SimpleOneForOne, Adapter: adapter.NewFake("t"), Dial: dummyDialer, Release: ReleaseRef{URL: "file:///tmp/x"}}
	require.NoError(t, s.validate())
}

func TestClockForDefaultsToWallClock(t *testing.T) {
	s := Spec{}
	assert.NotNil(t, clockFor(s))
}

func dummyDialer(ctx context.Context, name string) (io.ReadWriteCloser, error) {
	return nil, nil
}
