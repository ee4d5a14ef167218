package config

import (
	"fmt"
	"strconv"
	"strings"
)

const maxPort = 65535

// ParsePorts expands port syntax into the list of ports to poll:
//
//	"16384..16386"  inclusive range
//	"9001,9003"     list
//	"16384"         single port
//
// Anything else, including ports outside 1..65535 and reversed ranges, is an
// error.
func ParsePorts(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("port list is empty")
	}

	if lo, hi, ok := strings.Cut(spec, ".."); ok {
		start, err := parsePort(lo)
		if err != nil {
			return nil, err
		}
		end, err := parsePort(hi)
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, fmt.Errorf("invalid port range %q: end before start", spec)
		}

		ports := make([]int, 0, end-start+1)
		for p := start; p <= end; p++ {
			ports = append(ports, p)
		}
		return ports, nil
	}

	parts := strings.Split(spec, ",")
	ports := make([]int, 0, len(parts))
	for _, part := range parts {
		p, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func parsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if p < 1 || p > maxPort {
		return 0, fmt.Errorf("port %d out of range 1-%d", p, maxPort)
	}
	return p, nil
}
