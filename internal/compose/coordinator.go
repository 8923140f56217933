package compose

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ybenkhadda/dockback/internal/logger"
)

// ErrNotManaged indicates that no compose project exists for a directory, so
// there is no service to stop or start.
var ErrNotManaged = errors.New("no compose project for directory")

// CommandError carries the captured output of a failed docker compose call.
type CommandError struct {
	Op      string
	Project string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("docker compose %s failed for %q: %v", e.Op, e.Project, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Coordinator stops and starts the compose project owning a config
// directory, keyed by the directory's basename under projectsDir.
type Coordinator struct {
	projectsDir string
	log         logger.Logger
}

// New returns a Coordinator rooted at projectsDir.
func New(projectsDir string, log logger.Logger) *Coordinator {
	return &Coordinator{projectsDir: projectsDir, log: log}
}

// Managed reports whether a compose project directory exists for name.
func (c *Coordinator) Managed(name string) bool {
	info, err := os.Stat(c.projectPath(name))
	return err == nil && info.IsDir()
}

// Stop brings the project's containers down so they release file handles.
func (c *Coordinator) Stop(name string) error {
	return c.run(name, "stop", "stop")
}

// Start brings the project's containers back up in detached mode.
func (c *Coordinator) Start(name string) error {
	return c.run(name, "up", "up", "-d")
}

func (c *Coordinator) projectPath(name string) string {
	return filepath.Join(c.projectsDir, name)
}

// run executes docker compose in the project directory and waits for it.
// These calls are deliberately unbounded: the scheduled run is expected to be
// time-boxed by its supervisor, not by the engine.
func (c *Coordinator) run(name, op string, args ...string) error {
	dir := c.projectPath(name)
	if !c.Managed(name) {
		return fmt.Errorf("%w: %s", ErrNotManaged, name)
	}

	cmd := exec.Command("docker", append([]string{"compose"}, args...)...)
	cmd.Dir = dir

	c.log.Info("running docker compose",
		"op", op,
		"project", name,
		"dir", dir,
	)
	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &CommandError{Op: op, Project: name, Output: string(out), Err: err}
	}
	c.log.Info("docker compose completed",
		"op", op,
		"project", name,
		"duration", time.Since(start).String(),
	)
	return nil
}
