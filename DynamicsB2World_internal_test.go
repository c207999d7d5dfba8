package box2d

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLockGuardRejectsMutationDuringStep is testable property 7: any
// attempt to create/destroy bodies/fixtures/joints while the world is
// locked returns nil without side effects.
func TestLockGuardRejectsMutationDuringStep(t *testing.T) {
	world := MakeB2World(MakeB2Vec2(0, -10), 1)

	bd := MakeB2BodyDef()
	body := world.CreateBody(&bd)
	beforeCount := world.M_bodyCount

	world.M_flags |= B2World_Flags.E_locked
	defer func() { world.M_flags &= ^B2World_Flags.E_locked }()

	got := world.CreateBody(&bd)
	assert.Nil(t, got, "CreateBody must return nil while the world is locked")
	assert.Equal(t, beforeCount, world.M_bodyCount, "a rejected CreateBody must not change body count")

	world.DestroyBody(body)
	assert.Equal(t, beforeCount, world.M_bodyCount, "DestroyBody must no-op while the world is locked")
}
