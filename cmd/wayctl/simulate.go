package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p point) dist(q point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

type phase string

const (
	phaseOutbound   phase = "outbound"
	phaseStuck      phase = "stuck"
	phaseRecovering phase = "recovering"
	phaseReturning  phase = "returning"
)

const (
	cruiseSpeed   = 0.8 // m/s
	recoverySpeed = 0.6
	arriveRadius  = 0.5
	movementNoise = 0.1
	sensorNoise   = 0.1
	stuckFor      = 10 * time.Second
)

var (
	homePos  = point{0, 0}
	awayPos  = point{10, 8}
	stuckPos = point{5.2, 4.1}
)

// simulator drives one robot back and forth between two waypoints. On every
// outbound leg it jams at a fixed midpoint for stuckFor, then recovers at
// reduced speed.
type simulator struct {
	robotID string
	home    string
	away    string

	pos       point
	phase     phase
	speed     float64
	stuckTime time.Duration
	leg       float64
	total     float64
	rng       *rand.Rand
}

func newSimulator(robotID, home, away string, rng *rand.Rand) *simulator {
	return &simulator{
		robotID: robotID,
		home:    home,
		away:    away,
		pos:     homePos,
		phase:   phaseOutbound,
		speed:   cruiseSpeed,
		rng:     rng,
	}
}

func (s *simulator) target() point {
	switch s.phase {
	case phaseOutbound:
		return stuckPos
	case phaseReturning:
		return homePos
	default:
		return awayPos
	}
}

func (s *simulator) origin() string {
	if s.phase == phaseReturning {
		return s.away
	}
	return s.home
}

func (s *simulator) destination() string {
	if s.phase == phaseReturning {
		return s.home
	}
	return s.away
}

// step advances the simulation by dt.
func (s *simulator) step(dt time.Duration) {
	s.advancePhase(dt)
	if s.phase != phaseStuck {
		s.move(s.target(), dt)
	}
}

func (s *simulator) advancePhase(dt time.Duration) {
	switch s.phase {
	case phaseOutbound:
		if s.pos.dist(stuckPos) < arriveRadius {
			s.phase, s.speed, s.stuckTime = phaseStuck, 0, 0
			slog.Warn("robot stuck", "robot_id", s.robotID, "x", s.pos.X, "y", s.pos.Y)
		}
	case phaseStuck:
		s.stuckTime += dt
		if s.stuckTime >= stuckFor {
			s.phase, s.speed = phaseRecovering, recoverySpeed
			slog.Info("robot recovered", "robot_id", s.robotID, "destination", s.away)
		}
	case phaseRecovering:
		if s.pos.dist(awayPos) < arriveRadius {
			s.phase, s.speed, s.leg = phaseReturning, cruiseSpeed, 0
			slog.Info("robot arrived", "robot_id", s.robotID, "waypoint", s.away)
		}
	case phaseReturning:
		if s.pos.dist(homePos) < arriveRadius {
			s.phase, s.speed, s.leg = phaseOutbound, cruiseSpeed, 0
			slog.Info("robot arrived", "robot_id", s.robotID, "waypoint", s.home)
		}
	}
}

// move heads towards target without overshooting it, with a little jitter.
func (s *simulator) move(target point, dt time.Duration) {
	remaining := s.pos.dist(target)
	if remaining == 0 {
		return
	}

	stride := min(s.speed*dt.Seconds(), remaining)
	next := point{
		X: s.pos.X + (target.X-s.pos.X)/remaining*stride + s.jitter(movementNoise),
		Y: s.pos.Y + (target.Y-s.pos.Y)/remaining*stride + s.jitter(movementNoise),
	}

	moved := s.pos.dist(next)
	s.leg += moved
	s.total += moved
	s.pos = next
}

func (s *simulator) jitter(amplitude float64) float64 {
	return (s.rng.Float64()*2 - 1) * amplitude
}

func (s *simulator) battery() float64 {
	return math.Max(0, 100-s.total*2)
}

func (s *simulator) status() string {
	if s.phase == phaseStuck {
		return "stuck"
	}
	return "navigating"
}

// telemetry renders the current state in the relay's ingest format.
func (s *simulator) telemetry(now time.Time) map[string]any {
	return map[string]any{
		"robot_id":         s.robotID,
		"timestamp":        now.UTC().Format(time.RFC3339Nano),
		"status":           s.status(),
		"battery":          round(s.battery(), 1),
		"current_location": s.origin(),
		"destination":      s.destination(),
		"position": point{
			X: round(s.pos.X+s.jitter(sensorNoise), 2),
			Y: round(s.pos.Y+s.jitter(sensorNoise), 2),
		},
		"is_stuck":          s.phase == phaseStuck,
		"movement_speed":    round(s.speed, 2),
		"distance_traveled": round(s.leg, 2),
	}
}

func round(f float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(f*p) / p
}

type simulateOptions struct {
	robotID  string
	home     string
	away     string
	interval time.Duration
	steps    int
	seed     uint64
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Post simulated robot telemetry",
		Long:  "Simulates a robot shuttling between two waypoints. It jams halfway on every outbound leg, recovers, and posts telemetry each interval.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSimulate(ctx, cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.robotID, "robot", "robot_alpha", "robot id to report as")
	cmd.Flags().StringVar(&opts.home, "from", "lobby", "home waypoint")
	cmd.Flags().StringVar(&opts.away, "to", "cafeteria", "destination waypoint")
	cmd.Flags().DurationVar(&opts.interval, "interval", 2*time.Second, "time between telemetry posts")
	cmd.Flags().IntVar(&opts.steps, "steps", 0, "stop after this many posts (0 runs until interrupted)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}

func runSimulate(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts simulateOptions) error {
	if opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	seed := opts.seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	sim := newSimulator(opts.robotID, opts.home, opts.away, rand.New(rand.NewPCG(seed, seed)))
	client := newRelayClient(root.server, 5*time.Second)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "simulating %s between %s and %s, posting to %s every %s\n",
		opts.robotID, opts.home, opts.away, root.server, opts.interval)

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

loop:
	for n := 1; opts.steps == 0 || n <= opts.steps; n++ {
		sim.step(opts.interval)

		var resp struct {
			RecordID string `json:"record_id"`
		}
		if err := client.postJSON(ctx, "/api/v1/telemetry", sim.telemetry(time.Now()), &resp); err != nil {
			if ctx.Err() != nil {
				break loop
			}
			slog.Warn("telemetry post failed", "error", err)
		} else {
			fmt.Fprintf(out, "%s %-10s (%.2f, %.2f) %s -> %s battery %.1f%% record %s\n",
				time.Now().Format("15:04:05"), sim.status(), sim.pos.X, sim.pos.Y,
				sim.origin(), sim.destination(), sim.battery(), resp.RecordID)
		}

		if n == opts.steps {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	fmt.Fprintf(out, "simulation stopped after %.2fm\n", sim.total)
	return nil
}
