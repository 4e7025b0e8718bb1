package brain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"wayfindr.app/relay/internal/model"
)

// robotMentionPattern matches fleet references in operator text:
// "robot_02", "robot 2", "robot3", "robot two".
var robotMentionPattern = regexp.MustCompile(`(?i)\brobot[_\s]?(\d+|one|two|three)\b`)

var robotNumberWords = map[string]int{"one": 1, "two": 2, "three": 3}

// MentionedRobots returns the robot ids named in text, in order of first
// mention, normalized to the fleet's robot_NN form.
func MentionedRobots(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range robotMentionPattern.FindAllStringSubmatch(text, -1) {
		token := strings.ToLower(m[1])
		n, ok := robotNumberWords[token]
		if !ok {
			var err error
			if n, err = strconv.Atoi(token); err != nil {
				continue
			}
		}
		robotID := fmt.Sprintf("robot_%02d", n)
		if !seen[robotID] {
			seen[robotID] = true
			out = append(out, robotID)
		}
	}
	return out
}

// targetMentionedRobot records the first robot named in text on every
// navigate call that does not name one already. Dispatch only honours it
// when the request is not bound to a robot.
func targetMentionedRobot(intent *model.Intent, text string) {
	robots := MentionedRobots(text)
	if len(robots) == 0 {
		return
	}
	for i := range intent.FunctionCalls {
		call := &intent.FunctionCalls[i]
		if call.Name != model.FunctionNavigateToWaypoint {
			continue
		}
		if s, _ := call.Arguments["robot_id"].(string); strings.TrimSpace(s) != "" {
			continue
		}
		call.Arguments["robot_id"] = robots[0]
	}
}

// targetRobot picks the robot a command is addressed to. A robot-channel
// request always acts on its own robot; an operator request uses the robot
// named in the call.
func targetRobot(call model.FunctionCall, req RequestContext) string {
	if req.RobotID != "" {
		return req.RobotID
	}
	s, _ := call.Arguments["robot_id"].(string)
	return strings.TrimSpace(s)
}
