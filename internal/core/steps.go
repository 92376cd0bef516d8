package core

import (
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/cleanup"
	"github.com/Hara602/opsclean/internal/config"
	"github.com/Hara602/opsclean/internal/execute"
)

// BuildSteps turns the task section of the configuration into steps. Empty
// lists and disabled switches produce no step at all.
func BuildSteps(tasks config.TasksConfig, runner execute.Runner, eraser cleanup.Eraser, logger *zap.Logger) []cleanup.Step {
	var steps []cleanup.Step

	if len(tasks.TempDirs) > 0 {
		t := &cleanup.TempFiles{Dirs: tasks.TempDirs, Logger: logger}
		if tasks.SecureTemp {
			t.Eraser = eraser
		}
		steps = append(steps, t)
	}
	if tasks.History {
		steps = append(steps, &cleanup.BashHistory{
			Runner: runner,
			Shell:  tasks.HistoryShell,
			Files:  tasks.HistoryFiles,
			Logger: logger,
		})
	}
	if len(tasks.Timestamps) > 0 {
		steps = append(steps, &cleanup.Timestamps{Files: tasks.Timestamps, Logger: logger})
	}
	if len(tasks.Logs) > 0 {
		steps = append(steps, &cleanup.LogScrub{
			Files:           tasks.Logs,
			Markers:         tasks.LogMarkers,
			PreserveModTime: tasks.LogKeepMTime,
			Logger:          logger,
		})
	}
	if tasks.Network {
		steps = append(steps, &cleanup.NetworkTraces{Runner: runner, Logger: logger})
	}
	if len(tasks.Erase) > 0 {
		steps = append(steps, &cleanup.SecureDelete{Paths: tasks.Erase, Eraser: eraser, Logger: logger})
	}
	if tasks.SweepWindow > 0 && len(tasks.SweepDirs) > 0 {
		steps = append(steps, &cleanup.Sweep{
			Dirs:   tasks.SweepDirs,
			Window: tasks.SweepWindow,
			Eraser: eraser,
			Logger: logger,
		})
	}
	return steps
}
