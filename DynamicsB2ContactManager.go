package box2d

// B2ContactManager owns the world's contact graph and the broad-phase
// tree. Its contacts array is partitioned so that every TOI-candidate
// contact (see RecalculateToiCandidacy) occupies the prefix
// [0, toiCount); SolveTOI only ever scans that prefix. Every contact
// tracks its own position in the array via GetManagerIndex/
// SetManagerIndex, so push/remove/changeCandidacy are all O(1).
//
// During a step's parallel phases (FindNewContacts, Collide, the
// post-solve fixture sync), worker goroutines never mutate the contact
// list, the contacts array, or the broad-phase tree directly: anything
// that would do so is instead appended to that worker's
// b2PerThreadBuffers and applied serially afterward by one of the
// ConsumeDeferredX methods, in a globally deterministic order
// independent of goroutine scheduling.
type B2ContactManager struct {
	M_broadPhase      B2BroadPhase
	M_contactList     B2ContactInterface
	M_contactCount    int
	M_contactFilter   B2ContactFilterInterface
	M_contactListener B2ContactListenerInterface

	contacts []B2ContactInterface
	toiCount int

	perThread []b2PerThreadBuffers
}

var b2_defaultFilter B2ContactFilterInterface
var b2_defaultListener B2ContactListenerInterface = B2DefaultContactListener{}

func MakeB2ContactManager(threadCount int) B2ContactManager {
	return B2ContactManager{
		M_broadPhase:      MakeB2BroadPhase(),
		M_contactList:     nil,
		M_contactCount:    0,
		M_contactFilter:   b2_defaultFilter,
		M_contactListener: b2_defaultListener,
		perThread:         newPerThreadBuffersSlice(threadCount),
	}
}

func NewB2ContactManager(threadCount int) *B2ContactManager {
	res := MakeB2ContactManager(threadCount)
	return &res
}

func (mgr *B2ContactManager) SetThreadCount(threadCount int) {
	mgr.perThread = newPerThreadBuffersSlice(threadCount)
}

func (mgr *B2ContactManager) GetToiCount() int { return mgr.toiCount }
func (mgr *B2ContactManager) GetCount() int    { return len(mgr.contacts) }

// Contacts returns the full partitioned array: [0, GetToiCount()) is the
// TOI-candidate prefix, the rest is everything else.
func (mgr *B2ContactManager) Contacts() []B2ContactInterface { return mgr.contacts }

// ---------------------------------------------------------------------
// Partition maintenance.
// ---------------------------------------------------------------------

func (mgr *B2ContactManager) swap(i, j int) {
	mgr.contacts[i], mgr.contacts[j] = mgr.contacts[j], mgr.contacts[i]
	mgr.contacts[i].SetManagerIndex(i)
	mgr.contacts[j].SetManagerIndex(j)
}

// pushContact appends a newly created contact to the array, placing it
// in the TOI-candidate prefix if toiCandidate is true.
func (mgr *B2ContactManager) pushContact(c B2ContactInterface, toiCandidate bool) {
	mgr.contacts = append(mgr.contacts, c)
	idx := len(mgr.contacts) - 1
	c.SetManagerIndex(idx)
	c.SetToiCandidate(false)
	if toiCandidate {
		mgr.changeCandidacy(c, true)
	}
}

// removeContact removes c from the array in O(1), preserving the
// partition invariant.
func (mgr *B2ContactManager) removeContact(c B2ContactInterface) {
	idx := c.GetManagerIndex()
	last := len(mgr.contacts) - 1

	if c.IsToiCandidate() {
		mgr.swap(idx, mgr.toiCount-1)
		idx = mgr.toiCount - 1
		mgr.toiCount--
	}

	mgr.swap(idx, last)
	mgr.contacts[last] = nil
	mgr.contacts = mgr.contacts[:last]
	c.SetManagerIndex(-1)
}

// changeCandidacy moves c across the toiCount boundary if its candidacy
// differs from newCandidate.
func (mgr *B2ContactManager) changeCandidacy(c B2ContactInterface, newCandidate bool) {
	if c.IsToiCandidate() == newCandidate {
		return
	}

	idx := c.GetManagerIndex()
	if newCandidate {
		mgr.swap(idx, mgr.toiCount)
		mgr.toiCount++
	} else {
		mgr.toiCount--
		mgr.swap(idx, mgr.toiCount)
	}
	c.SetToiCandidate(newCandidate)
}

// RecalculateToiCandidacy implements the TOI-candidacy rule: a contact
// is TOI-eligible when neither fixture is a sensor and (either body is a
// bullet, or either body is non-dynamic and has not opted out via
// PreferNoCCD). It is serial-only; it mutates the contacts array.
func (mgr *B2ContactManager) RecalculateToiCandidacy(c B2ContactInterface) {
	fixtureA := c.GetFixtureA()
	fixtureB := c.GetFixtureB()

	if fixtureA.IsSensor() || fixtureB.IsSensor() {
		mgr.changeCandidacy(c, false)
		return
	}

	bodyA := fixtureA.GetBody()
	bodyB := fixtureB.GetBody()

	candidate := bodyA.IsBullet() || bodyB.IsBullet()
	if !candidate {
		if bodyA.GetType() != B2BodyType.B2_dynamicBody && !bodyA.PreferNoCCD() {
			candidate = true
		} else if bodyB.GetType() != B2BodyType.B2_dynamicBody && !bodyB.PreferNoCCD() {
			candidate = true
		}
	}

	mgr.changeCandidacy(c, candidate)
}

// RecalculateToiCandidacyForBody recalculates every contact touching b,
// for use when a body's bullet or PreferNoCCD flag, or its type, changes
// outside of a step.
func (mgr *B2ContactManager) RecalculateToiCandidacyForBody(b *B2Body) {
	for edge := b.GetContactList(); edge != nil; edge = edge.Next {
		mgr.RecalculateToiCandidacy(edge.Contact)
	}
}

// ---------------------------------------------------------------------
// Destruction (serial only; called from ConsumeDeferredDestroys or
// directly by the world outside of a step).
// ---------------------------------------------------------------------

func (mgr *B2ContactManager) Destroy(c B2ContactInterface) {
	fixtureA := c.GetFixtureA()
	fixtureB := c.GetFixtureB()
	bodyA := fixtureA.GetBody()
	bodyB := fixtureB.GetBody()

	if mgr.M_contactListener != nil && c.IsTouching() {
		mgr.M_contactListener.EndContact(c)
	}

	if c.GetPrev() != nil {
		c.GetPrev().SetNext(c.GetNext())
	}
	if c.GetNext() != nil {
		c.GetNext().SetPrev(c.GetPrev())
	}
	if c == mgr.M_contactList {
		mgr.M_contactList = c.GetNext()
	}

	if c.GetNodeA().Prev != nil {
		c.GetNodeA().Prev.Next = c.GetNodeA().Next
	}
	if c.GetNodeA().Next != nil {
		c.GetNodeA().Next.Prev = c.GetNodeA().Prev
	}
	if c.GetNodeA() == bodyA.M_contactList {
		bodyA.M_contactList = c.GetNodeA().Next
	}

	if c.GetNodeB().Prev != nil {
		c.GetNodeB().Prev.Next = c.GetNodeB().Next
	}
	if c.GetNodeB().Next != nil {
		c.GetNodeB().Next.Prev = c.GetNodeB().Prev
	}
	if c.GetNodeB() == bodyB.M_contactList {
		bodyB.M_contactList = c.GetNodeB().Next
	}

	mgr.removeContact(c)

	B2ContactDestroy(c)
	mgr.M_contactCount--
}

// ---------------------------------------------------------------------
// FindNewContacts (parallel broad-phase pairing).
// ---------------------------------------------------------------------

// FindNewContacts processes a sub-range of the broad-phase move buffer
// and is safe to call concurrently from several threads over disjoint
// ranges; every new pair becomes a deferred create on threadId's buffer,
// never an immediate contact creation.
func (mgr *B2ContactManager) FindNewContacts(begin, end int, threadId uint32) {
	buf := &mgr.perThread[threadId]
	mgr.M_broadPhase.UpdatePairsRange(begin, end, func(userDataA, userDataB interface{}) {
		mgr.addPairDeferred(userDataA, userDataB, buf)
	})
}

// ResetMoveBuffer clears the broad-phase move buffer; call once after
// every FindNewContacts sub-range for this phase has completed.
func (mgr *B2ContactManager) ResetMoveBuffer() {
	mgr.M_broadPhase.ResetMoveBuffer()
}

// MoveBufferCount is how many entries FindNewContacts callers should
// partition across sub-ranges.
func (mgr *B2ContactManager) MoveBufferCount() int {
	return mgr.M_broadPhase.MoveBufferCount()
}

func (mgr *B2ContactManager) addPairDeferred(proxyUserDataA, proxyUserDataB interface{}, buf *b2PerThreadBuffers) {
	proxyA := proxyUserDataA.(*B2FixtureProxy)
	proxyB := proxyUserDataB.(*B2FixtureProxy)

	fixtureA := proxyA.Fixture
	fixtureB := proxyB.Fixture

	indexA := proxyA.ChildIndex
	indexB := proxyB.ChildIndex

	bodyA := fixtureA.GetBody()
	bodyB := fixtureB.GetBody()

	if bodyA == bodyB {
		return
	}

	// Contact-edge lists are read-only during this phase (they are only
	// mutated by ConsumeDeferredCreates/Destroys between phases), so
	// walking them here to detect an existing contact is race-free.
	edge := bodyB.GetContactList()
	for edge != nil {
		if edge.Other == bodyA {
			fA := edge.Contact.GetFixtureA()
			fB := edge.Contact.GetFixtureB()
			iA := edge.Contact.GetChildIndexA()
			iB := edge.Contact.GetChildIndexB()

			if fA == fixtureA && fB == fixtureB && iA == indexA && iB == indexB {
				return
			}
			if fA == fixtureB && fB == fixtureA && iA == indexB && iB == indexA {
				return
			}
		}
		edge = edge.Next
	}

	if bodyB.ShouldCollide(bodyA) == false {
		return
	}

	if mgr.M_contactFilter != nil && mgr.M_contactFilter.ShouldCollide(fixtureA, fixtureB) == false {
		return
	}

	low, high := proxyA.ProxyId, proxyB.ProxyId
	if low > high {
		low, high = high, low
	}

	buf.deferredCreates = append(buf.deferredCreates, b2DeferredContactCreate{
		FixtureA:    fixtureA,
		FixtureB:    fixtureB,
		IndexA:      indexA,
		IndexB:      indexB,
		ProxyIdLow:  low,
		ProxyIdHigh: high,
	})
}

// createContact runs the (serial-only) contact factory and linking
// logic shared by ConsumeDeferredCreates.
func (mgr *B2ContactManager) createContact(fixtureA *B2Fixture, indexA int, fixtureB *B2Fixture, indexB int) {
	c := B2ContactFactory(fixtureA, indexA, fixtureB, indexB)
	if c == nil {
		return
	}

	fixtureA = c.GetFixtureA()
	fixtureB = c.GetFixtureB()
	indexA = c.GetChildIndexA()
	indexB = c.GetChildIndexB()
	bodyA := fixtureA.GetBody()
	bodyB := fixtureB.GetBody()

	c.SetPrev(nil)
	c.SetNext(mgr.M_contactList)
	if mgr.M_contactList != nil {
		mgr.M_contactList.SetPrev(c)
	}
	mgr.M_contactList = c

	c.GetNodeA().Contact = c
	c.GetNodeA().Other = bodyB
	c.GetNodeA().Prev = nil
	c.GetNodeA().Next = bodyA.M_contactList
	if bodyA.M_contactList != nil {
		bodyA.M_contactList.Prev = c.GetNodeA()
	}
	bodyA.M_contactList = c.GetNodeA()

	c.GetNodeB().Contact = c
	c.GetNodeB().Other = bodyA
	c.GetNodeB().Prev = nil
	c.GetNodeB().Next = bodyB.M_contactList
	if bodyB.M_contactList != nil {
		bodyB.M_contactList.Prev = c.GetNodeB()
	}
	bodyB.M_contactList = c.GetNodeB()

	if fixtureA.IsSensor() == false && fixtureB.IsSensor() == false {
		bodyA.SetAwake(true)
		bodyB.SetAwake(true)
	}

	mgr.M_contactCount++

	mgr.pushContact(c, false)
	mgr.RecalculateToiCandidacy(c)
}

// AddPair is the serial, non-deferred entry point, used by
// FindNewContactsSerial (which SolveTOI calls). It creates the contact
// immediately.
func (mgr *B2ContactManager) AddPair(proxyUserDataA, proxyUserDataB interface{}) {
	proxyA := proxyUserDataA.(*B2FixtureProxy)
	proxyB := proxyUserDataB.(*B2FixtureProxy)

	fixtureA := proxyA.Fixture
	fixtureB := proxyB.Fixture
	indexA := proxyA.ChildIndex
	indexB := proxyB.ChildIndex
	bodyA := fixtureA.GetBody()
	bodyB := fixtureB.GetBody()

	if bodyA == bodyB {
		return
	}

	edge := bodyB.GetContactList()
	for edge != nil {
		if edge.Other == bodyA {
			fA := edge.Contact.GetFixtureA()
			fB := edge.Contact.GetFixtureB()
			iA := edge.Contact.GetChildIndexA()
			iB := edge.Contact.GetChildIndexB()
			if fA == fixtureA && fB == fixtureB && iA == indexA && iB == indexB {
				return
			}
			if fA == fixtureB && fB == fixtureA && iA == indexB && iB == indexA {
				return
			}
		}
		edge = edge.Next
	}

	if bodyB.ShouldCollide(bodyA) == false {
		return
	}
	if mgr.M_contactFilter != nil && mgr.M_contactFilter.ShouldCollide(fixtureA, fixtureB) == false {
		return
	}

	mgr.createContact(fixtureA, indexA, fixtureB, indexB)
}

// FindNewContactsSerial is the non-parallel equivalent of FindNewContacts
// + ConsumeDeferredCreates, for single-threaded callers.
func (mgr *B2ContactManager) FindNewContactsSerial() {
	mgr.M_broadPhase.UpdatePairs(mgr.AddPair)
}

// ---------------------------------------------------------------------
// Collide (parallel narrow-phase).
// ---------------------------------------------------------------------

// Collide runs narrow-phase evaluation over contacts[begin:end] and is
// safe to call concurrently over disjoint ranges of the same contacts
// array: it reads body transforms and the contact's own fields, and
// defers anything that would mutate shared state (filtering destroys,
// lost-overlap destroys, wake requests, listener events) onto
// threadId's buffer.
func (mgr *B2ContactManager) Collide(begin, end int, threadId uint32) {
	buf := &mgr.perThread[threadId]

	for i := begin; i < end; i++ {
		c := mgr.contacts[i]

		fixtureA := c.GetFixtureA()
		fixtureB := c.GetFixtureB()
		indexA := c.GetChildIndexA()
		indexB := c.GetChildIndexB()
		bodyA := fixtureA.GetBody()
		bodyB := fixtureB.GetBody()

		if (c.GetFlags() & B2Contact_Flag.E_filterFlag) != 0 {
			if bodyB.ShouldCollide(bodyA) == false {
				buf.deferredDestroys = append(buf.deferredDestroys, c)
				continue
			}
			if mgr.M_contactFilter != nil && mgr.M_contactFilter.ShouldCollide(fixtureA, fixtureB) == false {
				buf.deferredDestroys = append(buf.deferredDestroys, c)
				continue
			}
			c.SetFlags(c.GetFlags() & ^B2Contact_Flag.E_filterFlag)
		}

		activeA := bodyA.IsAwake() && bodyA.M_type != B2BodyType.B2_staticBody
		activeB := bodyB.IsAwake() && bodyB.M_type != B2BodyType.B2_staticBody
		if activeA == false && activeB == false {
			continue
		}

		proxyIdA := fixtureA.M_proxies[indexA].ProxyId
		proxyIdB := fixtureB.M_proxies[indexB].ProxyId
		if mgr.M_broadPhase.TestOverlap(proxyIdA, proxyIdB) == false {
			buf.deferredDestroys = append(buf.deferredDestroys, c)
			continue
		}

		b2ContactUpdateMT(c, mgr.M_contactListener, buf, threadId)
	}
}

// ---------------------------------------------------------------------
// Fixture synchronization (move-proxy generation).
// ---------------------------------------------------------------------

// GenerateDeferredMoveProxies synchronizes bodies[begin:end]'s fixtures
// against the broad-phase, queuing every resulting MoveProxy call onto
// threadId's buffer instead of applying it directly. Disjoint body
// ranges are safe to synchronize concurrently.
func (mgr *B2ContactManager) GenerateDeferredMoveProxies(bodies []*B2Body, begin, end int, threadId uint32) {
	buf := &mgr.perThread[threadId]
	for i := begin; i < end; i++ {
		bodies[i].SynchronizeFixturesDeferred(buf)
	}
}

// ---------------------------------------------------------------------
// Deferred-event consumption. Every ConsumeDeferredX method sorts each
// thread's slice of the relevant buffer in parallel (via the supplied
// executor) and then serially k-way merges them in ascending
// (proxyIdLow, proxyIdHigh) order (move proxies: ascending proxy id), so
// the resulting callback sequence is
// identical no matter how work happened to be scheduled across threads.
// ---------------------------------------------------------------------

func (mgr *B2ContactManager) sortAndWait(exec B2TaskExecutor, group *B2TaskGroup, ctx B2ThreadContext, label string, tasks []B2Task) {
	if len(tasks) == 0 {
		return
	}
	exec.SubmitTasks(group, tasks)
	exec.Wait(group, ctx)
}

func (mgr *B2ContactManager) ConsumeDeferredAwakes(exec B2TaskExecutor, group *B2TaskGroup, ctx B2ThreadContext) {
	get := func(b *b2PerThreadBuffers) []B2ContactInterface { return b.deferredAwakes }
	mgr.sortAndWait(exec, group, ctx, "sort-awakes", b2SortTasks(mgr.perThread, "sort-awakes", get, b2ContactLessThan))
	b2MergeKWay(mgr.perThread, get, b2ContactLessThan, func(c B2ContactInterface) {
		c.GetFixtureA().GetBody().SetAwake(true)
		c.GetFixtureB().GetBody().SetAwake(true)
	})
}

func (mgr *B2ContactManager) ConsumeDeferredBeginContacts(exec B2TaskExecutor, group *B2TaskGroup, ctx B2ThreadContext) {
	get := func(b *b2PerThreadBuffers) []B2ContactInterface { return b.deferredBeginContacts }
	mgr.sortAndWait(exec, group, ctx, "sort-begin", b2SortTasks(mgr.perThread, "sort-begin", get, b2ContactLessThan))
	if mgr.M_contactListener == nil {
		return
	}
	b2MergeKWay(mgr.perThread, get, b2ContactLessThan, mgr.M_contactListener.BeginContact)
}

func (mgr *B2ContactManager) ConsumeDeferredEndContacts(exec B2TaskExecutor, group *B2TaskGroup, ctx B2ThreadContext) {
	get := func(b *b2PerThreadBuffers) []B2ContactInterface { return b.deferredEndContacts }
	mgr.sortAndWait(exec, group, ctx, "sort-end", b2SortTasks(mgr.perThread, "sort-end", get, b2ContactLessThan))
	if mgr.M_contactListener == nil {
		return
	}
	b2MergeKWay(mgr.perThread, get, b2ContactLessThan, mgr.M_contactListener.EndContact)
}

func (mgr *B2ContactManager) ConsumeDeferredPreSolves(exec B2TaskExecutor, group *B2TaskGroup, ctx B2ThreadContext) {
	get := func(b *b2PerThreadBuffers) []b2DeferredPreSolve { return b.deferredPreSolves }
	mgr.sortAndWait(exec, group, ctx, "sort-presolve", b2SortTasks(mgr.perThread, "sort-presolve", get, b2DeferredPreSolveLessThan))
	if mgr.M_contactListener == nil {
		return
	}
	b2MergeKWay(mgr.perThread, get, b2DeferredPreSolveLessThan, func(r b2DeferredPreSolve) {
		mgr.M_contactListener.PreSolve(r.Contact, r.OldManifold)
	})
}

func (mgr *B2ContactManager) ConsumeDeferredPostSolves(exec B2TaskExecutor, group *B2TaskGroup, ctx B2ThreadContext) {
	get := func(b *b2PerThreadBuffers) []b2DeferredPostSolve { return b.deferredPostSolves }
	mgr.sortAndWait(exec, group, ctx, "sort-postsolve", b2SortTasks(mgr.perThread, "sort-postsolve", get, b2DeferredPostSolveLessThan))
	if mgr.M_contactListener == nil {
		return
	}
	b2MergeKWay(mgr.perThread, get, b2DeferredPostSolveLessThan, func(r b2DeferredPostSolve) {
		mgr.M_contactListener.PostSolve(r.Contact, &r.Impulse)
	})
}

func (mgr *B2ContactManager) ConsumeDeferredDestroys(exec B2TaskExecutor, group *B2TaskGroup, ctx B2ThreadContext) {
	get := func(b *b2PerThreadBuffers) []B2ContactInterface { return b.deferredDestroys }
	mgr.sortAndWait(exec, group, ctx, "sort-destroy", b2SortTasks(mgr.perThread, "sort-destroy", get, b2ContactLessThan))
	b2MergeKWay(mgr.perThread, get, b2ContactLessThan, func(c B2ContactInterface) {
		if c.GetManagerIndex() < 0 {
			// Skip a contact that is no longer in the manager's contacts
			// array.
			return
		}
		mgr.Destroy(c)
	})
}

func (mgr *B2ContactManager) ConsumeDeferredCreates(exec B2TaskExecutor, group *B2TaskGroup, ctx B2ThreadContext) {
	get := func(b *b2PerThreadBuffers) []b2DeferredContactCreate { return b.deferredCreates }
	mgr.sortAndWait(exec, group, ctx, "sort-create", b2SortTasks(mgr.perThread, "sort-create", get, b2DeferredContactCreateLessThan))
	b2MergeKWayDedupCreates(mgr.perThread, func(r b2DeferredContactCreate) {
		mgr.createContact(r.FixtureA, r.IndexA, r.FixtureB, r.IndexB)
	})
}

func (mgr *B2ContactManager) ConsumeDeferredMoveProxies(exec B2TaskExecutor, group *B2TaskGroup, ctx B2ThreadContext) {
	get := func(b *b2PerThreadBuffers) []b2DeferredMoveProxy { return b.deferredMoveProxies }
	mgr.sortAndWait(exec, group, ctx, "sort-moveproxy", b2SortTasks(mgr.perThread, "sort-moveproxy", get, b2DeferredMoveProxyLessThan))
	b2MergeKWay(mgr.perThread, get, b2DeferredMoveProxyLessThan, func(r b2DeferredMoveProxy) {
		mgr.M_broadPhase.MoveProxy(r.ProxyId, r.AABB, r.Displacement)
	})
}

// ClearDeferredBuffers resets every thread's buffers; call after each
// phase's merges have been fully consumed.
func (mgr *B2ContactManager) ClearDeferredBuffers() {
	for i := range mgr.perThread {
		mgr.perThread[i].clear()
	}
}
