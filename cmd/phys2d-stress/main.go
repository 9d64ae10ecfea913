package main

import (
	"fmt"
	"os"

	"github.com/polyphase/phys2d"
	"github.com/setanarut/vec"
	"github.com/spf13/cobra"
)

var (
	flagBodies        int
	flagSteps         int
	flagWorkers       int
	flagHz            float64
	flagDeterministic bool
	flagBruteIndex    bool
)

var rootCmd = &cobra.Command{
	Use:   "phys2d-stress",
	Short: "Drop a grid of circles onto chain terrain and report step timings",
	RunE:  run,
}

func init() {
	rootCmd.Flags().IntVar(&flagBodies, "bodies", 500, "number of falling circle bodies")
	rootCmd.Flags().IntVar(&flagSteps, "steps", 600, "number of simulation steps")
	rootCmd.Flags().IntVar(&flagWorkers, "workers", 1, "worker goroutines for the parallel phases")
	rootCmd.Flags().Float64Var(&flagHz, "hz", 60.0, "step frequency")
	rootCmd.Flags().BoolVar(&flagDeterministic, "deterministic", true, "use the sorted finish variants")
	rootCmd.Flags().BoolVar(&flagBruteIndex, "brute-index", false, "use the brute-force spatial index instead of the AABB tree")
}

func run(cmd *cobra.Command, args []string) error {
	if flagHz <= 0 {
		return fmt.Errorf("hz must be positive, got %v", flagHz)
	}

	def := phys2d.MakeWorldDef()
	def.Deterministic = flagDeterministic
	if flagWorkers > 1 {
		def.Executor = phys2d.NewPoolExecutor(flagWorkers)
	}
	if flagBruteIndex {
		def.Index = phys2d.NewBruteIndex()
	}
	world := phys2d.NewWorld(def)

	buildTerrain(world)
	spawnCircles(world, flagBodies)

	dt := 1.0 / flagHz
	var avg phys2d.Profile
	scale := 1.0 / float64(flagSteps)

	for i := 0; i < flagSteps; i++ {
		world.Step(dt, 8, 3)
		p := world.Profile()
		phys2d.AddProfile(&avg, &p, scale)
	}

	fmt.Printf("bodies %d, steps %d, workers %d\n", flagBodies, flagSteps, flagWorkers)
	fmt.Printf("contacts %d (toi %d)\n", world.ContactManager().ContactCount(), world.ContactManager().ToiCount())
	fmt.Printf("avg step        %8.3f ms\n", avg.Step)
	fmt.Printf("  collide       %8.3f ms\n", avg.Collide)
	fmt.Printf("  solve         %8.3f ms\n", avg.Solve)
	fmt.Printf("    init        %8.3f ms\n", avg.SolveInit)
	fmt.Printf("    velocity    %8.3f ms\n", avg.SolveVelocity)
	fmt.Printf("    position    %8.3f ms\n", avg.SolvePosition)
	fmt.Printf("  broadphase    %8.3f ms\n", avg.Broadphase)
	fmt.Printf("    find pairs  %8.3f ms\n", avg.BroadphaseFindContacts)
	fmt.Printf("    sync        %8.3f ms\n", avg.BroadphaseSyncFixtures)
	return nil
}

// buildTerrain creates a static bowl so the circles pile up instead of
// falling forever.
func buildTerrain(world *phys2d.World) {
	bd := phys2d.MakeBodyDef()
	ground := world.CreateBody(&bd)

	vertices := []vec.Vec2{
		{X: -60.0, Y: 40.0},
		{X: -50.0, Y: 0.0},
		{X: -20.0, Y: -4.0},
		{X: 0.0, Y: -6.0},
		{X: 20.0, Y: -4.0},
		{X: 50.0, Y: 0.0},
		{X: 60.0, Y: 40.0},
	}

	fd := phys2d.MakeFixtureDef()
	fd.Shape = &phys2d.Chain{Vertices: vertices}
	fd.Friction = 0.6
	ground.CreateFixture(&fd)
}

func spawnCircles(world *phys2d.World, count int) {
	const radius = 0.5
	const spacing = 1.1

	cols := 40
	for i := 0; i < count; i++ {
		col := i % cols
		row := i / cols

		bd := phys2d.MakeBodyDef()
		bd.Type = phys2d.DynamicBody
		bd.Position = vec.Vec2{
			X: (float64(col) - float64(cols)/2.0) * spacing,
			Y: 10.0 + float64(row)*spacing,
		}
		b := world.CreateBody(&bd)

		fd := phys2d.MakeFixtureDef()
		fd.Shape = &phys2d.Circle{R: radius}
		fd.Density = 1.0
		fd.Friction = 0.3
		fd.Restitution = 0.1
		b.CreateFixture(&fd)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
