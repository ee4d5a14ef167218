// Package sampler provides statistical stack sampling for long-running Go
// processes.
//
// A Sampler wakes up on a self-rescheduling timer, captures the stack of every
// goroutine and counts how often each distinct stack has been seen. Stacks are
// identified by their signature: the frames, outermost first, formatted as
// functionName(packagePath) and joined with ';'.
//
// An Emitter serves the counters over a minimal text protocol:
//
//	GET /?reset=true
//
//	elapsed 12.5
//	granularity 0.005
//	main(main);run(main);work(main) 1840
//	main(main);run(main);idle(main) 660
//
// The stack lines are sorted by count descending. With reset=1 or reset=true
// the counters are cleared right after the response has been captured, so a
// collector polling with reset never sees a sample twice.
//
// Basic integration:
//
//	import "github.com/stackcollector/stackcollector/pkg/sampler"
//
//	func main() {
//	    p, err := sampler.Run(ctx, sampler.RunConfig{Port: 16384})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer p.Close()
//
//	    // Your application code
//	}
//
// Only one sampler may run per process. The protocol has no authentication
// and is meant for trusted internal networks.
package sampler
