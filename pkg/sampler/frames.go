package sampler

import (
	"runtime"
	"sort"
	"strings"
)

// FrameSeparator joins the frames of a stack signature.
const FrameSeparator = ";"

// TruncatedFrame is the outermost frame of a signature whose stack was deeper
// than the captured program counters. It keeps cut stacks from being rooted at
// an arbitrary mid-stack function.
const TruncatedFrame = "[truncated]()"

// stackKey is the raw program counter stack of a goroutine, as returned by
// runtime.GoroutineProfile. Deeper stacks are cut to their innermost 32
// program counters and rendered under TruncatedFrame.
type stackKey = [32]uintptr

// stackCounts counts samples per raw stack.
type stackCounts map[stackKey]int64

func (c stackCounts) clone() stackCounts {
	out := make(stackCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// render resolves raw stacks into signatures. Distinct raw stacks that
// resolve to the same signature are merged. The result is sorted by count
// descending, then by signature.
func (c stackCounts) render() []StackCount {
	merged := make(map[string]int64, len(c))
	for key, count := range c {
		sig := signature(key[:])
		if sig == "" {
			continue
		}
		merged[sig] += count
	}

	stacks := make([]StackCount, 0, len(merged))
	for sig, count := range merged {
		stacks = append(stacks, StackCount{Signature: sig, Count: count})
	}
	SortStacks(stacks)
	return stacks
}

// SortStacks orders stacks by count descending, ties broken by signature.
func SortStacks(stacks []StackCount) {
	sort.Slice(stacks, func(i, j int) bool {
		if stacks[i].Count != stacks[j].Count {
			return stacks[i].Count > stacks[j].Count
		}
		return stacks[i].Signature < stacks[j].Signature
	})
}

// signature formats a program counter stack, innermost frame first, as an
// outermost-first signature.
func signature(pcs []uintptr) string {
	n := 0
	for n < len(pcs) && pcs[n] != 0 {
		n++
	}
	if n == 0 {
		return ""
	}

	var stack []string
	outermost := ""
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		outermost = frame.Function
		if frame.Function != "runtime.goexit" {
			stack = append(stack, FormatFrame(frame.Function))
		}
		if !more {
			break
		}
	}

	// Goroutine stacks end in runtime.goexit. A full buffer without it was cut.
	if n == len(pcs) && outermost != "runtime.goexit" {
		stack = append(stack, TruncatedFrame)
	}

	for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
		stack[i], stack[j] = stack[j], stack[i]
	}
	return strings.Join(stack, FrameSeparator)
}

// FormatFrame formats a fully qualified Go function name as
// functionName(packagePath), e.g. "net/http.(*conn).serve" becomes
// "(*conn).serve(net/http)".
func FormatFrame(function string) string {
	if function == "" {
		return "?(?)"
	}

	pkg, name := "", function
	lastSlash := strings.LastIndex(function, "/")
	if dot := strings.Index(function[lastSlash+1:], "."); dot >= 0 {
		pkg = function[:lastSlash+1+dot]
		name = function[lastSlash+1+dot+1:]
	}

	return frameReplacer.Replace(name + "(" + pkg + ")")
}

// frameReplacer keeps the signature and protocol delimiters out of frames.
var frameReplacer = strings.NewReplacer(";", "_", " ", "_", "\t", "_", "\n", "_")
