package box2d

// Compile-time tuning constants for the parallel step orchestrator. These
// mirror the role of the constants in CommonB2Settings.go, but govern the
// task executor and the deferred-event protocol rather than the physics
// math itself.
const (
	// B2_maxThreads bounds the number of logical workers (including the
	// user thread) a B2ThreadPool will ever report via GetThreadCount.
	B2_maxThreads = 32

	// B2_maxThreadPoolThreads bounds the number of worker goroutines a
	// B2ThreadPool will launch (B2_maxThreads - 1, the user thread is not
	// launched).
	B2_maxThreadPoolThreads = B2_maxThreads - 1

	// B2_maxConcurrentTaskGroups bounds how many task groups may be
	// outstanding (submitted but not yet waited on) at once. The step
	// orchestrator never needs more than a couple, so this is small; it
	// exists as a sanity backstop rather than a real scaling knob.
	B2_maxConcurrentTaskGroups = 8

	// B2_partitionRangeMaxOutput bounds the number of sub-ranges a single
	// PartitionRange call may produce.
	B2_partitionRangeMaxOutput = 64

	// B2_solveBatchTargetCost is the accumulated island cost (see
	// b2IslandCost) at which a SolveTask is submitted to the executor.
	B2_solveBatchTargetCost = 400

	// B2_solveBatchTargetBodyCount caps the number of bodies batched into
	// a single SolveTask, independent of cost.
	B2_solveBatchTargetBodyCount = 128

	// B2_cacheLineSize is used to pad per-thread data so that two workers
	// never false-share a cache line while writing their deferred buffers.
	B2_cacheLineSize = 64

	// B2_minRangeTaskSize is the smallest sub-range the partitioner will
	// produce, unless the whole input is smaller than this.
	B2_minRangeTaskSize = 32
)
