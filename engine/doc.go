// Package engine implements the optimized execution layer of swarmexec.
//
// The Engine composes a bounded resource pool, a TTL+LRU result cache, a
// fixed-capacity history ring, a concurrency gate and an asynchronous file
// manager around an external task executor. A single task flows through:
//
//	cache lookup (hit => return immediately)
//	-> gate acquire -> pool acquire -> executor invocation -> pool release
//	-> history push -> cache store -> gate release -> result
//
// Batches are partitioned into chunks executed concurrently within the
// chunk and sequentially across chunks, with results collected positionally
// so output order always matches input order.
//
// Each Engine owns independent pool, cache, history and gate instances, so
// multiple engines coexist in one process without interference.
package engine
