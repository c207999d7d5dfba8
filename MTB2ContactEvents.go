package box2d

// B2ContactCallbackResult is returned by the immediate, in-place variant
// of each ContactListener hook. It decides whether the deferred variant
// also runs, single-threaded, between phases.
type B2ContactCallbackResult int

const (
	B2ContactCallback_DoNotCallDeferred B2ContactCallbackResult = iota
	B2ContactCallback_CallDeferred
)

// B2ContactListenerInterface splits each of the four classic Box2D contact
// events into an immediate hook (called in-place on the worker that
// produced the event, under the restricted-access rules below) and a
// deferred hook (called serially, between phases, with the whole engine
// mutable).
//
// Immediate hooks may read or modify the contact itself, and may modify
// the non-static body of the pair for PreSolve/PostSolve; they must not
// touch any other body, joint, or contact. That restriction is not
// enforced at runtime (see the error-handling design): violating it is
// undefined behavior by contract, same as the original engine.
type B2ContactListenerInterface interface {
	BeginContactImmediate(contact B2ContactInterface, threadId uint32) B2ContactCallbackResult
	BeginContact(contact B2ContactInterface)

	EndContactImmediate(contact B2ContactInterface, threadId uint32) B2ContactCallbackResult
	EndContact(contact B2ContactInterface)

	PreSolveImmediate(contact B2ContactInterface, oldManifold *B2Manifold, threadId uint32) B2ContactCallbackResult
	PreSolve(contact B2ContactInterface, oldManifold B2Manifold)

	PostSolveImmediate(contact B2ContactInterface, impulse *B2ContactImpulse, threadId uint32) B2ContactCallbackResult
	PostSolve(contact B2ContactInterface, impulse *B2ContactImpulse)
}

// B2DefaultContactListener answers CallDeferred to every immediate hook
// and does nothing in every deferred hook. Embed it to override only the
// events you care about, the way B2ContactFilter provides a default
// ShouldCollide.
type B2DefaultContactListener struct{}

func (B2DefaultContactListener) BeginContactImmediate(B2ContactInterface, uint32) B2ContactCallbackResult {
	return B2ContactCallback_CallDeferred
}
func (B2DefaultContactListener) BeginContact(B2ContactInterface) {}

func (B2DefaultContactListener) EndContactImmediate(B2ContactInterface, uint32) B2ContactCallbackResult {
	return B2ContactCallback_CallDeferred
}
func (B2DefaultContactListener) EndContact(B2ContactInterface) {}

func (B2DefaultContactListener) PreSolveImmediate(B2ContactInterface, *B2Manifold, uint32) B2ContactCallbackResult {
	return B2ContactCallback_CallDeferred
}
func (B2DefaultContactListener) PreSolve(B2ContactInterface, B2Manifold) {}

func (B2DefaultContactListener) PostSolveImmediate(B2ContactInterface, *B2ContactImpulse, uint32) B2ContactCallbackResult {
	return B2ContactCallback_CallDeferred
}
func (B2DefaultContactListener) PostSolve(B2ContactInterface, *B2ContactImpulse) {}

// b2DeferredContactCreate is produced by AddPair when the manager is
// deferring creates (i.e. during a parallel FindNewContacts phase) and
// consumed by ConsumeDeferredCreates.
type b2DeferredContactCreate struct {
	FixtureA, FixtureB *B2Fixture
	IndexA, IndexB     int
	ProxyIdLow         int
	ProxyIdHigh        int
}

// b2DeferredMoveProxy is produced by GenerateDeferredMoveProxies and
// consumed by ConsumeDeferredMoveProxies, which commits it to the
// broad-phase tree.
type b2DeferredMoveProxy struct {
	ProxyId      int
	AABB         B2AABB
	Displacement B2Vec2
}

// b2DeferredPreSolve pairs a contact with the manifold it had before this
// step's narrow-phase update, for the deferred PreSolve hook.
type b2DeferredPreSolve struct {
	Contact     B2ContactInterface
	OldManifold B2Manifold
}

// b2DeferredPostSolve pairs a contact with the impulses the solver applied
// to it, for the deferred PostSolve hook.
type b2DeferredPostSolve struct {
	Contact B2ContactInterface
	Impulse B2ContactImpulse
}

func b2ContactLessThan(a, b B2ContactInterface) bool {
	aLow, aHigh := a.ProxyIdPair()
	bLow, bHigh := b.ProxyIdPair()
	if aLow != bLow {
		return aLow < bLow
	}
	return aHigh < bHigh
}

func b2DeferredContactCreateLessThan(a, b b2DeferredContactCreate) bool {
	if a.ProxyIdLow != b.ProxyIdLow {
		return a.ProxyIdLow < b.ProxyIdLow
	}
	return a.ProxyIdHigh < b.ProxyIdHigh
}

func b2DeferredMoveProxyLessThan(a, b b2DeferredMoveProxy) bool {
	return a.ProxyId < b.ProxyId
}

func b2DeferredPreSolveLessThan(a, b b2DeferredPreSolve) bool {
	return b2ContactLessThan(a.Contact, b.Contact)
}

func b2DeferredPostSolveLessThan(a, b b2DeferredPostSolve) bool {
	return b2ContactLessThan(a.Contact, b.Contact)
}

// b2ContactUpdateMT is the parallel-safe replacement for B2ContactUpdate.
// It performs the same narrow-phase evaluation, but routes every
// listener-visible event through the immediate hook and, when the hook
// requests it, a per-thread deferred buffer instead of calling the
// listener in-place.
func b2ContactUpdateMT(contact B2ContactInterface, listener B2ContactListenerInterface, buf *b2PerThreadBuffers, threadId uint32) {
	oldManifold := *contact.GetManifold()

	contact.SetFlags(contact.GetFlags() | B2Contact_Flag.E_enabledFlag)

	touching := false
	wasTouching := (contact.GetFlags() & B2Contact_Flag.E_touchingFlag) == B2Contact_Flag.E_touchingFlag

	sensorA := contact.GetFixtureA().IsSensor()
	sensorB := contact.GetFixtureB().IsSensor()
	sensor := sensorA || sensorB

	bodyA := contact.GetFixtureA().GetBody()
	bodyB := contact.GetFixtureB().GetBody()
	xfA := bodyA.GetTransform()
	xfB := bodyB.GetTransform()

	if sensor {
		shapeA := contact.GetFixtureA().GetShape()
		shapeB := contact.GetFixtureB().GetShape()
		touching = B2TestOverlapShapes(shapeA, contact.GetChildIndexA(), shapeB, contact.GetChildIndexB(), xfA, xfB)
		contact.GetManifold().PointCount = 0
	} else {
		contact.Evaluate(contact.GetManifold(), xfA, xfB)
		touching = contact.GetManifold().PointCount > 0

		for i := 0; i < contact.GetManifold().PointCount; i++ {
			mp2 := &contact.GetManifold().Points[i]
			mp2.NormalImpulse = 0.0
			mp2.TangentImpulse = 0.0
			id2 := mp2.Id

			for j := 0; j < oldManifold.PointCount; j++ {
				mp1 := &oldManifold.Points[j]
				if mp1.Id.Key() == id2.Key() {
					mp2.NormalImpulse = mp1.NormalImpulse
					mp2.TangentImpulse = mp1.TangentImpulse
					break
				}
			}
		}

		if touching != wasTouching {
			// Waking a body is not safe to do directly from a worker: it
			// walks the body's contact list, which other workers may be
			// reading concurrently. Defer it instead.
			buf.deferredAwakes = append(buf.deferredAwakes, contact)
		}
	}

	if touching {
		contact.SetFlags(contact.GetFlags() | B2Contact_Flag.E_touchingFlag)
	} else {
		contact.SetFlags(contact.GetFlags() & ^B2Contact_Flag.E_touchingFlag)
	}

	if listener == nil {
		return
	}

	if !wasTouching && touching {
		if listener.BeginContactImmediate(contact, threadId) == B2ContactCallback_CallDeferred {
			buf.deferredBeginContacts = append(buf.deferredBeginContacts, contact)
		}
	}

	if wasTouching && !touching {
		if listener.EndContactImmediate(contact, threadId) == B2ContactCallback_CallDeferred {
			buf.deferredEndContacts = append(buf.deferredEndContacts, contact)
		}
	}

	if !sensor && touching {
		if listener.PreSolveImmediate(contact, &oldManifold, threadId) == B2ContactCallback_CallDeferred {
			buf.deferredPreSolves = append(buf.deferredPreSolves, b2DeferredPreSolve{Contact: contact, OldManifold: oldManifold})
		}
	}
}
