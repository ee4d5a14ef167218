package flamegraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/pprof/profile"

	"github.com/stackcollector/stackcollector/internal/store"
	"github.com/stackcollector/stackcollector/pkg/sampler"
)

// Profile exports the windowed stack sums as a pprof profile with one sample
// per stack that has a non-zero sum. Stacks are emitted in signature order.
func Profile(ctx context.Context, src Scanner, window store.Window) (*profile.Profile, error) {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{
			Type: "samples",
			Unit: "count",
		}},
		PeriodType: &profile.ValueType{
			Type: "samples",
			Unit: "count",
		},
		Period:    1,
		TimeNanos: time.Now().UnixNano(),
	}
	if window.From != nil && window.Until != nil && *window.Until >= *window.From {
		p.TimeNanos = time.Unix(*window.From, 0).UnixNano()
		p.DurationNanos = (*window.Until - *window.From) * int64(time.Second)
	}

	b := newProfileBuilder(p)
	err := src.Scan(ctx, func(signature, value string) error {
		if sum := window.Sum(value); sum > 0 {
			b.addSample(strings.Split(signature, sampler.FrameSeparator), sum)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan store: %w", err)
	}

	if err := p.CheckValid(); err != nil {
		return nil, fmt.Errorf("failed to build profile: %w", err)
	}
	return p, nil
}

type profileBuilder struct {
	p         *profile.Profile
	functions map[string]*profile.Function
	locations map[string]*profile.Location
}

func newProfileBuilder(p *profile.Profile) *profileBuilder {
	return &profileBuilder{
		p:         p,
		functions: make(map[string]*profile.Function),
		locations: make(map[string]*profile.Location),
	}
}

// addSample records frames (outermost first) as one sample. pprof locations
// are leaf first.
func (b *profileBuilder) addSample(frames []string, value int64) {
	locs := make([]*profile.Location, 0, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		locs = append(locs, b.location(frames[i]))
	}

	b.p.Sample = append(b.p.Sample, &profile.Sample{
		Value:    []int64{value},
		Location: locs,
	})
}

func (b *profileBuilder) location(frame string) *profile.Location {
	if l, ok := b.locations[frame]; ok {
		return l
	}

	fn, ok := b.functions[frame]
	if !ok {
		name, pkg := splitFrame(frame)
		fn = &profile.Function{
			ID:         uint64(len(b.p.Function) + 1),
			Name:       qualify(pkg, name),
			SystemName: frame,
			Filename:   pkg,
		}
		b.functions[frame] = fn
		b.p.Function = append(b.p.Function, fn)
	}

	l := &profile.Location{
		ID:   uint64(len(b.p.Location) + 1),
		Line: []profile.Line{{Function: fn}},
	}
	b.locations[frame] = l
	b.p.Location = append(b.p.Location, l)
	return l
}

// splitFrame splits "function(package)" into its parts. Frames that do not
// have that shape are returned whole as the function name.
func splitFrame(frame string) (name, pkg string) {
	if !strings.HasSuffix(frame, ")") {
		return frame, ""
	}
	open := strings.LastIndexByte(frame, '(')
	if open <= 0 {
		return frame, ""
	}
	return frame[:open], frame[open+1 : len(frame)-1]
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}
