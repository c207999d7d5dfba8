package box2d_test

import (
	"testing"

	"github.com/parallel-box2d/box2d-mt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T, threadCount int32) (*box2d.B2World, *box2d.B2ThreadPoolTaskExecutor) {
	t.Helper()
	exec := box2d.NewB2ThreadPoolTaskExecutor(threadCount)
	t.Cleanup(exec.Shutdown)
	world := box2d.MakeB2World(box2d.MakeB2Vec2(0, -10), int(exec.ThreadCount()))
	return &world, exec
}

// TestWorldUnlockedOutsideStep is the external-API half of the lock-guard
// property; see TestLockGuardRejectsMutationDuringStep (internal package)
// for the actual locked-state rejection.
func TestWorldUnlockedOutsideStep(t *testing.T) {
	world, _ := newTestWorld(t, 0)

	bd := box2d.MakeB2BodyDef()
	before := world.GetBodyCount()
	_ = world.CreateBody(&bd)
	require.Equal(t, before+1, world.GetBodyCount())
	assert.False(t, world.IsLocked(), "world must be unlocked outside of Step")
}

// TestIslandFlagCleanlinessAcrossSteps builds a small stack of dynamic
// boxes on a static ground body, runs several steps, and asserts that
// between steps no body is left with its islandFlag set — testable
// property 3.
func TestIslandFlagCleanlinessAcrossSteps(t *testing.T) {
	world, exec := newTestWorld(t, -1)
	ctx := exec.UserThreadContext()

	groundBd := box2d.MakeB2BodyDef()
	ground := world.CreateBody(&groundBd)
	groundShape := box2d.MakeB2EdgeShape()
	groundShape.Set(box2d.MakeB2Vec2(-50, 0), box2d.MakeB2Vec2(50, 0))
	ground.CreateFixture(&groundShape, 0)

	boxShape := box2d.MakeB2PolygonShape()
	boxShape.SetAsBox(0.5, 0.5)

	bodies := make([]*box2d.B2Body, 10)
	for i := range bodies {
		bd := box2d.MakeB2BodyDef()
		bd.Type = box2d.B2BodyType.B2_dynamicBody
		bd.Position.Set(0, 1+float64(i)*1.1)
		b := world.CreateBody(&bd)
		b.CreateFixture(&boxShape, 1.0)
		bodies[i] = b
	}

	for step := 0; step < 30; step++ {
		world.Step(1.0/60.0, 8, 3, exec, ctx)

		for b := world.GetBodyList(); b != nil; b = b.M_next {
			assert.False(t, b.M_flags&box2d.B2Body_Flags.E_islandFlag != 0,
				"step %d: body left with islandFlag set between steps", step)
		}
		for c := world.GetContactList(); c != nil; c = c.GetNext() {
			assert.False(t, c.GetFlags()&box2d.B2Contact_Flag.E_islandFlag != 0,
				"step %d: contact left with islandFlag set between steps", step)
		}
	}
}

// TestBroadPhaseFreshnessAfterStep checks testable property 5: after a
// step, every proxy's fat AABB still contains the body's tight AABB.
func TestBroadPhaseFreshnessAfterStep(t *testing.T) {
	world, exec := newTestWorld(t, -1)
	ctx := exec.UserThreadContext()

	shape := box2d.MakeB2CircleShape()
	shape.M_radius = 0.5

	bd := box2d.MakeB2BodyDef()
	bd.Type = box2d.B2BodyType.B2_dynamicBody
	bd.Position.Set(0, 20)
	bd.LinearVelocity.Set(0, -15)
	body := world.CreateBody(&bd)
	fixture := body.CreateFixture(&shape, 1.0)

	for i := 0; i < 20; i++ {
		world.Step(1.0/60.0, 8, 3, exec, ctx)
	}

	bp := world.GetContactManager().M_broadPhase
	proxyID := fixture.M_proxies[0].ProxyId
	fatAABB := bp.GetFatAABB(proxyID)
	tight := fixture.M_proxies[0].Aabb
	require.True(t, fatAABB.Contains(tight), "fat AABB must still contain the tight AABB after a step")
}
