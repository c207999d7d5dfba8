package box2d

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// makeOverlappingCircleWorld builds a world with two overlapping dynamic
// circle bodies, steps it once so FindNewContacts/Collide create and
// confirm the single resulting contact, and returns the world, the two
// bodies, and that contact.
func makeOverlappingCircleWorld(t *testing.T) (*B2World, *B2Body, *B2Body, B2ContactInterface) {
	t.Helper()

	gravity := MakeB2Vec2(0, 0)
	exec := NewB2ThreadPoolTaskExecutor(0)
	t.Cleanup(exec.Shutdown)
	ctx := exec.UserThreadContext()

	world := MakeB2World(gravity, int(exec.ThreadCount()))

	shape := MakeB2CircleShape()
	shape.M_radius = 1.0

	bdA := MakeB2BodyDef()
	bdA.Type = B2BodyType.B2_dynamicBody
	bdA.Position.Set(0, 0)
	bodyA := world.CreateBody(&bdA)
	bodyA.CreateFixture(&shape, 1.0)

	bdB := MakeB2BodyDef()
	bdB.Type = B2BodyType.B2_dynamicBody
	bdB.Position.Set(0.5, 0)
	bodyB := world.CreateBody(&bdB)
	bodyB.CreateFixture(&shape, 1.0)

	world.Step(1.0/60.0, 8, 3, exec, ctx)

	require.Equal(t, 1, world.M_contactManager.GetCount(), "expected exactly one contact between the overlapping circles")
	return &world, bodyA, bodyB, world.M_contactManager.Contacts()[0]
}

// assertPartitionInvariant checks testable property 1: every contact's
// managerIndex matches its slot, and membership in the TOI prefix agrees
// with IsToiCandidate.
func assertPartitionInvariant(t *testing.T, mgr *B2ContactManager) {
	t.Helper()
	contacts := mgr.Contacts()
	toiCount := mgr.GetToiCount()
	for i, c := range contacts {
		require.Equal(t, i, c.GetManagerIndex(), "contact at slot %d has stale managerIndex", i)
		require.Equal(t, i < toiCount, c.IsToiCandidate(), "contact at slot %d: prefix membership disagrees with IsToiCandidate", i)
	}
}

func TestContactPartitionInvariantAfterCandidacyChange(t *testing.T) {
	world, bodyA, bodyB, contact := makeOverlappingCircleWorld(t)
	mgr := &world.M_contactManager

	assertPartitionInvariant(t, mgr)
	require.False(t, contact.IsToiCandidate(), "neither body is a bullet yet")

	bodyA.SetBullet(true)
	mgr.RecalculateToiCandidacyForBody(bodyA)
	assertPartitionInvariant(t, mgr)
	require.True(t, contact.IsToiCandidate())

	bodyA.SetBullet(false)
	mgr.RecalculateToiCandidacyForBody(bodyA)
	assertPartitionInvariant(t, mgr)
	require.False(t, contact.IsToiCandidate())

	_ = bodyB
}

func TestContactPartitionInvariantAcrossManyContacts(t *testing.T) {
	gravity := MakeB2Vec2(0, 0)
	exec := NewB2ThreadPoolTaskExecutor(0)
	t.Cleanup(exec.Shutdown)
	ctx := exec.UserThreadContext()
	world := MakeB2World(gravity, int(exec.ThreadCount()))

	shape := MakeB2CircleShape()
	shape.M_radius = 5.0

	const n = 12
	bodies := make([]*B2Body, n)
	for i := 0; i < n; i++ {
		bd := MakeB2BodyDef()
		bd.Type = B2BodyType.B2_dynamicBody
		bd.Position.Set(float64(i)*0.1, 0)
		b := world.CreateBody(&bd)
		b.CreateFixture(&shape, 1.0)
		bodies[i] = b
	}

	world.Step(1.0/60.0, 8, 3, exec, ctx)
	mgr := &world.M_contactManager
	assertPartitionInvariant(t, mgr)
	require.Greater(t, mgr.GetCount(), 0, "overlapping circles should have produced contacts")

	// Flip half the bodies bullet and recheck, then flip back, then
	// destroy a body in the middle of the chain to exercise removeContact.
	for i := 0; i < n; i += 2 {
		bodies[i].SetBullet(true)
		mgr.RecalculateToiCandidacyForBody(bodies[i])
	}
	assertPartitionInvariant(t, mgr)
	require.Greater(t, mgr.GetToiCount(), 0)

	world.DestroyBody(bodies[n/2])
	assertPartitionInvariant(t, mgr)

	for i := 1; i < n; i += 2 {
		if i == n/2 {
			continue
		}
		bodies[i].SetBullet(true)
		mgr.RecalculateToiCandidacyForBody(bodies[i])
	}
	assertPartitionInvariant(t, mgr)
	require.Equal(t, mgr.GetCount(), mgr.GetToiCount(), "every surviving body is now a bullet, so every contact should be TOI-candidate")
}

func TestContactUniquenessAfterRepeatedOverlapDetection(t *testing.T) {
	world, _, _, _ := makeOverlappingCircleWorld(t)
	mgr := &world.M_contactManager
	exec := NewB2ThreadPoolTaskExecutor(0)
	t.Cleanup(exec.Shutdown)
	ctx := exec.UserThreadContext()

	for i := 0; i < 5; i++ {
		world.Step(1.0/60.0, 8, 3, exec, ctx)
	}
	require.Equal(t, 1, mgr.GetCount(), "re-running FindNewContacts on an already-overlapping pair must not duplicate the contact")
}

// TestToiCandidacyRule exercises the §4.4 rule directly:
// neither fixture is a sensor AND (either body is a bullet,
// OR either body is non-dynamic and has not opted out via PreferNoCCD).
func TestToiCandidacyRule(t *testing.T) {
	type config struct {
		typeA, typeB               uint8
		bulletA, bulletB           bool
		sensorA, sensorB           bool
		preferNoCCDA, preferNoCCDB bool
	}

	cases := []struct {
		name string
		cfg  config
		want bool
	}{
		{
			name: "two dynamic non-bullets",
			cfg:  config{typeA: B2BodyType.B2_dynamicBody, typeB: B2BodyType.B2_dynamicBody},
			want: false,
		},
		{
			name: "bullet dynamic vs dynamic",
			cfg:  config{typeA: B2BodyType.B2_dynamicBody, typeB: B2BodyType.B2_dynamicBody, bulletA: true},
			want: true,
		},
		{
			name: "dynamic vs static, no opt-out",
			cfg:  config{typeA: B2BodyType.B2_dynamicBody, typeB: B2BodyType.B2_staticBody},
			want: true,
		},
		{
			name: "dynamic vs static, static opts out",
			cfg:  config{typeA: B2BodyType.B2_dynamicBody, typeB: B2BodyType.B2_staticBody, preferNoCCDB: true},
			want: false,
		},
		{
			name: "sensor beats bullet",
			cfg:  config{typeA: B2BodyType.B2_dynamicBody, typeB: B2BodyType.B2_dynamicBody, bulletA: true, sensorB: true},
			want: false,
		},
		{
			name: "kinematic vs dynamic bullet, kinematic opts out but bullet wins",
			cfg:  config{typeA: B2BodyType.B2_kinematicBody, typeB: B2BodyType.B2_dynamicBody, preferNoCCDA: true, bulletB: true},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gravity := MakeB2Vec2(0, 0)
			exec := NewB2ThreadPoolTaskExecutor(0)
			t.Cleanup(exec.Shutdown)
			ctx := exec.UserThreadContext()
			world := MakeB2World(gravity, int(exec.ThreadCount()))

			shape := MakeB2CircleShape()
			shape.M_radius = 1.0

			bdA := MakeB2BodyDef()
			bdA.Type = tc.cfg.typeA
			bdA.Bullet = tc.cfg.bulletA
			bdA.PreferNoCCD = tc.cfg.preferNoCCDA
			bodyA := world.CreateBody(&bdA)
			fdA := MakeB2FixtureDef()
			fdA.Shape = &shape
			fdA.Density = 1.0
			fdA.IsSensor = tc.cfg.sensorA
			bodyA.CreateFixtureFromDef(&fdA)

			bdB := MakeB2BodyDef()
			bdB.Type = tc.cfg.typeB
			bdB.Bullet = tc.cfg.bulletB
			bdB.PreferNoCCD = tc.cfg.preferNoCCDB
			bdB.Position.Set(0.5, 0)
			bodyB := world.CreateBody(&bdB)
			fdB := MakeB2FixtureDef()
			fdB.Shape = &shape
			fdB.Density = 1.0
			fdB.IsSensor = tc.cfg.sensorB
			bodyB.CreateFixtureFromDef(&fdB)

			world.Step(1.0/60.0, 8, 3, exec, ctx)

			require.Equal(t, 1, world.M_contactManager.GetCount())
			c := world.M_contactManager.Contacts()[0]
			require.Equal(t, tc.want, c.IsToiCandidate())
			assertPartitionInvariant(t, &world.M_contactManager)
		})
	}
}
