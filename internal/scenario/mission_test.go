package scenario

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgreigagts/engout-harness/internal/simlink"
	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

var (
	testRally  = vehicle.Location{Latitude: 36.8164241, Longitude: -2.868918, Altitude: 5000}
	testGuided = vehicle.Location{Latitude: 36.8192676, Longitude: -2.8719136, Altitude: 5000}
)

func newTestSuite(t *testing.T) (*Suite, *simlink.Link) {
	t.Helper()

	link := simlink.New(simlink.DefaultConfig())
	drv := NewDriver(link, WithPollInterval(time.Millisecond))
	suite := NewSuite(link, drv)

	ctx := context.Background()
	require.NoError(t, link.LoadMission(ctx, MissionFile))
	require.NoError(t, link.UploadRallyPoints(ctx, []vehicle.Location{testRally}))
	return suite, link
}

func TestBasicAutoMission_RallyLanding(t *testing.T) {
	suite, _ := newTestSuite(t)

	cfg := MissionConfig{
		Heading:     270,
		Target:      testRally,
		MinDistance: 0,
		MaxDistance: 50,
	}
	require.NoError(t, suite.BasicAutoMission(context.Background(), cfg))

	landing := suite.TakeLanding()
	require.NotNil(t, landing)
	assert.LessOrEqual(t, landing.Distance, 50.0)
	assert.Nil(t, suite.TakeLanding(), "TakeLanding must consume the record")
}

func TestBasicAutoMission_HeadingSweep(t *testing.T) {
	suite, _ := newTestSuite(t)
	rng := rand.New(rand.NewSource(42))

	headings := []float64{0, 90, 180, 270}
	for i := 0; i < 2; i++ {
		headings = append(headings, float64(rng.Intn(360)))
	}

	for _, heading := range headings {
		cfg := MissionConfig{
			Heading:     heading,
			Target:      testRally,
			MinDistance: 0,
			MaxDistance: 50,
		}
		require.NoErrorf(t, suite.BasicAutoMission(context.Background(), cfg),
			"mission failed at heading %.0f", heading)
	}
}

func TestBasicAutoMission_GuidedOverride(t *testing.T) {
	suite, _ := newTestSuite(t)

	cfg := MissionConfig{
		Heading:     270,
		Target:      testGuided,
		Guided:      true,
		MinDistance: 0,
		MaxDistance: 50,
	}
	require.NoError(t, suite.BasicAutoMission(context.Background(), cfg))

	landing := suite.TakeLanding()
	require.NotNil(t, landing)

	// The diversion target, not the rally point, decides the
	// landing site.
	assert.LessOrEqual(t, landing.Location.DistanceTo(testGuided), 50.0)
	assert.Greater(t, landing.Location.DistanceTo(testRally), 100.0)
}

func TestBasicAutoMission_AssistTimeout(t *testing.T) {
	suite, _ := newTestSuite(t)

	cfg := MissionConfig{
		Heading:       270,
		Target:        testRally,
		MinDistance:   0,
		MaxDistance:   300,
		AssistTimeout: 1,
	}
	require.NoError(t, suite.BasicAutoMission(context.Background(), cfg))
}

func TestBasicAutoMission_RTLTimeout(t *testing.T) {
	suite, _ := newTestSuite(t)

	cfg := MissionConfig{
		Heading:     270,
		Target:      testRally,
		MinDistance: 50,
		MaxDistance: 300,
		RTLTimeout:  5,
	}
	require.NoError(t, suite.BasicAutoMission(context.Background(), cfg))

	landing := suite.TakeLanding()
	require.NotNil(t, landing)
	assert.GreaterOrEqual(t, landing.Distance, 50.0,
		"a cut-short RTL should land measurably away from the target")
}

func TestBasicAutoMission_DistanceBandViolation(t *testing.T) {
	suite, _ := newTestSuite(t)

	cfg := MissionConfig{
		Heading:     270,
		Target:      testRally,
		MinDistance: 0,
		MaxDistance: 1, // tighter than any landing the model produces
	}
	err := suite.BasicAutoMission(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, IsAssertion(err), "distance violation must be an assertion failure, got %v", err)
	assert.Nil(t, suite.TakeLanding(), "a failed mission must not record a landing")
}

func TestBasicAutoMission_MutuallyExclusiveOverrides(t *testing.T) {
	suite, _ := newTestSuite(t)

	cfg := MissionConfig{
		Heading:       270,
		Target:        testRally,
		MaxDistance:   300,
		AssistTimeout: 1,
		RTLTimeout:    5,
	}
	err := suite.BasicAutoMission(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestParameterIntegrity(t *testing.T) {
	suite, _ := newTestSuite(t)
	require.NoError(t, suite.ParameterIntegrity(context.Background()))
}

func TestPrearmChecks(t *testing.T) {
	suite, _ := newTestSuite(t)
	require.NoError(t, suite.PrearmChecks(context.Background()))
}

func TestMissionConfig_Name(t *testing.T) {
	assert.Contains(t, MissionConfig{Heading: 270, Target: testRally, MaxDistance: 50}.Name(), "rally")
	assert.Contains(t, MissionConfig{Heading: 270, Target: testGuided, Guided: true, MaxDistance: 50}.Name(), "guided")
	assert.Contains(t, MissionConfig{AssistTimeout: 1, MaxDistance: 300}.Name(), "assist")
	assert.Contains(t, MissionConfig{RTLTimeout: 5, MaxDistance: 300}.Name(), "RTL")
}
