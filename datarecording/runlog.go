package datarecording

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunInfo is one property of a simulation run.
type RunInfo struct {
	Property string
	Value    string
}

// RunRecorder logs how a simulation run was started so that a recorded
// database can be traced back to the command that produced it.
type RunRecorder struct {
	tableName string
	recorder  DataRecorder
	entries   []RunInfo
}

// NewRunRecorder creates a RunRecorder that stores run properties through
// the given recorder.
func NewRunRecorder(recorder DataRecorder) *RunRecorder {
	r := &RunRecorder{
		recorder:  recorder,
		tableName: "run_log_" + time.Now().Format("2006_01_02_15_04_05"),
	}

	r.recorder.CreateTable(r.tableName, RunInfo{})

	return r
}

// Record captures the start time, the command line, and the executable
// path of the current run.
func (r *RunRecorder) Record() {
	startTime := time.Now().Format("2006-01-02 15:04:05")
	r.entries = append(r.entries, RunInfo{"Start Time", startTime})

	cmd := strings.Join(os.Args, " ")
	r.entries = append(r.entries, RunInfo{"Command", cmd})

	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}
	r.entries = append(r.entries, RunInfo{"Path", filepath.Dir(ex)})
}

// Flush writes the captured properties and the end time of the run.
func (r *RunRecorder) Flush() {
	for _, entry := range r.entries {
		r.recorder.InsertData(r.tableName, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05")
	r.recorder.InsertData(r.tableName, RunInfo{"End Time", endTime})

	r.entries = nil

	r.recorder.Flush()
}
