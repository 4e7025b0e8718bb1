package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultWaypoints is the building vocabulary used when no WAYPOINTS_FILE is set.
var DefaultWaypoints = []string{
	"reception",
	"lobby",
	"cafeteria",
	"meeting_room_a",
	"meeting_room_b",
	"conference_hall",
	"elevator",
	"restroom",
	"exit",
	"main_hall",
	"office_wing_a",
	"office_wing_b",
}

type waypointsFile struct {
	Waypoints []string `yaml:"waypoints"`
}

// LoadWaypoints reads a YAML file of the form:
//
//	waypoints:
//	  - reception
//	  - cafeteria
//
// An empty path returns a copy of DefaultWaypoints. Names are lower-cased,
// trimmed and de-duplicated; file order is preserved.
func LoadWaypoints(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), DefaultWaypoints...), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading waypoints file: %w", err)
	}
	return ParseWaypoints(raw)
}

func ParseWaypoints(raw []byte) ([]string, error) {
	var f waypointsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing waypoints file: %w", err)
	}

	seen := make(map[string]bool, len(f.Waypoints))
	out := make([]string, 0, len(f.Waypoints))
	for _, w := range f.Waypoints {
		name := strings.ToLower(strings.TrimSpace(w))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("waypoints file contains no waypoints")
	}
	return out, nil
}
