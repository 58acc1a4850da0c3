// Command memsim runs a demo workload on the simulated memory subsystem: a
// processor-like agent issuing random accesses through the address router
// and a ROM download landing in both backends.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/coreforge/memsim/datarecording"
	"github.com/coreforge/memsim/mem/trace"
	"github.com/coreforge/memsim/memsys"
	"github.com/coreforge/memsim/memsys/agents"
	"github.com/coreforge/memsim/monitoring"
	"github.com/coreforge/memsim/sim"
)

var (
	profileName string
	numAccesses int
	romBytes    int
	seed        int64
	traceDB     string
	monitorPort int
)

var rootCmd = &cobra.Command{
	Use:   "memsim",
	Short: "memsim simulates an FPGA-core memory subsystem cycle by cycle",
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&profileName, "profile", "demo",
		"address-map profile to load (demo, highmem)")
	rootCmd.Flags().IntVar(&numAccesses, "accesses", 10000,
		"number of random accesses the processor agent issues")
	rootCmd.Flags().IntVar(&romBytes, "rom-bytes", 4096,
		"size of the ROM image to download into both backends")
	rootCmd.Flags().Int64Var(&seed, "seed", 1,
		"random seed of the processor agent")
	rootCmd.Flags().StringVar(&traceDB, "trace", "",
		"record all memory traffic into the SQLite database at this path")
	rootCmd.Flags().IntVar(&monitorPort, "monitor-port", 0,
		"serve the monitoring API on this port, 0 disables monitoring")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}

	atexit.Exit(0)
}

func run() {
	engine := sim.NewSerialEngine()
	simulation := sim.NewSimulation(engine)

	ms := buildSubsystem(simulation)

	profile, ok := profiles()[profileName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown profile %q\n", profileName)
		os.Exit(1)
	}
	ms.LoadProfile(profile)

	proc := agents.NewAccessAgent("ProcAgent", engine, 100*sim.MHz,
		ms.RouterPort(), 2, 0x0, 0x10000, numAccesses, seed)
	ms.ConnectSystemMaster(proc.MemPort())
	simulation.RegisterComponent(proc)

	image := make([]byte, romBytes)
	rand.New(rand.NewSource(seed)).Read(image)
	download := agents.NewDownloadAgent("DownloadAgent", engine, 100*sim.MHz,
		ms.LoaderPort(), 2, 0x0, image)
	ms.ConnectSystemMaster(download.MemPort())
	simulation.RegisterComponent(download)

	if traceDB != "" {
		recorder := datarecording.New(traceDB)
		tracer := trace.NewTracer(recorder, engine)
		attachTracer(tracer, ms)
	}

	if monitorPort != 0 {
		startMonitor(engine, simulation, download)
	}

	proc.TickLater()
	download.TickLater()

	if err := engine.Run(); err != nil {
		panic(err)
	}

	reportStats(engine, proc, download)
}

func buildSubsystem(simulation *sim.Simulation) *memsys.Subsystem {
	return memsys.MakeBuilder().
		WithSimulation(simulation).
		WithFreq(100 * sim.MHz).
		WithVideoFreq(25 * sim.MHz).
		WithStream(memsys.StreamConfig{
			Name: "Video", Backend: memsys.BackendDDR, Slot: 0,
			InWordBytes: 8, Wrapping: true, VideoDomain: true,
		}).
		WithStream(memsys.StreamConfig{
			Name: "Proc", Backend: memsys.BackendDDR, Slot: 1,
			InWordBytes: 2, Depth: 2, Wrapping: true,
		}).
		WithStream(memsys.StreamConfig{
			Name: "DownloadDDR", Backend: memsys.BackendDDR, Slot: 2,
			InWordBytes: 2, WriteCombining: true,
		}).
		WithStream(memsys.StreamConfig{
			Name: "DownloadSDRAM", Backend: memsys.BackendSDRAM, Slot: 0,
			InWordBytes: 2, WriteCombining: true,
		}).
		WithStream(memsys.StreamConfig{
			Name: "Rom", Backend: memsys.BackendSDRAM, Slot: 1,
			InWordBytes: 2,
		}).
		Build("MemSys")
}

func profiles() map[string]memsys.Profile {
	return map[string]memsys.Profile{
		"demo": {
			Name: "demo",
			Offsets: map[string]uint64{
				"Video":         0x000000,
				"Proc":          0x400000,
				"DownloadDDR":   0x200000,
				"DownloadSDRAM": 0x000000,
				"Rom":           0x100000,
			},
			Ranges: []memsys.ProfileRange{
				{Lo: 0x00000, Hi: 0x10000, Stream: "Proc"},
				{Lo: 0x10000, Hi: 0x20000, Stream: "Rom"},
			},
		},
		"highmem": {
			Name: "highmem",
			Offsets: map[string]uint64{
				"Video":         0x000000,
				"Proc":          0x800000,
				"DownloadDDR":   0x600000,
				"DownloadSDRAM": 0x000000,
				"Rom":           0x200000,
			},
			Ranges: []memsys.ProfileRange{
				{Lo: 0x00000, Hi: 0x40000, Stream: "Proc"},
				{Lo: 0x40000, Hi: 0x50000, Stream: "Rom"},
			},
		},
	}
}

func attachTracer(tracer *trace.Tracer, ms *memsys.Subsystem) {
	for _, c := range ms.Caches {
		tracer.AttachTo(c.TopPort())
		tracer.AttachTo(c.BottomPort())
	}

	tracer.AttachTo(ms.DDRArbiter.BottomPort())
	tracer.AttachTo(ms.SDRAMArbiter.BottomPort())
	tracer.AttachTo(ms.DDR.TopPort())
	tracer.AttachTo(ms.SDRAM.TopPort())
}

func startMonitor(
	engine sim.Engine,
	simulation *sim.Simulation,
	download *agents.DownloadAgent,
) {
	monitor := monitoring.NewMonitor()
	monitor.WithPortNumber(monitorPort)
	monitor.RegisterEngine(engine)

	for _, c := range simulation.Components() {
		monitor.RegisterComponent(c)
	}

	bar := monitor.CreateProgressBar("ROM download", download.WordsTotal())
	download.WordSent = func() { bar.IncrementFinished(1) }

	monitor.StartServer()
}

func reportStats(
	engine sim.Engine,
	proc *agents.AccessAgent,
	download *agents.DownloadAgent,
) {
	freq := 100 * sim.MHz
	cycles := uint64(float64(engine.CurrentTime()) * float64(freq))

	fmt.Printf("simulated time: %.9fs (%d cycles at %s)\n",
		float64(engine.CurrentTime()), cycles, "100MHz")

	if !proc.Done() {
		fmt.Println("warning: the processor agent did not finish")
	}

	if !download.Done() {
		fmt.Println("warning: the download did not finish")
	}

	fmt.Printf("downloaded %d bytes into both backends\n", romBytes)
}
