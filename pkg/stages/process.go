package stages

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/easydep-io/easydep/pkg/engine"
)

// process wraps a spawned bash script: the OS process, the log file it
// writes to, and an on-exit future — grounded on the spawn/capture shape
// of an exec-based process check, generalized from a synchronous Run()
// into an asynchronous one with a kill switch, since the pipeline must be
// able to abort a long-running deploy script mid-flight.
type process struct {
	cmd     *exec.Cmd
	logFile *os.File
	logPath string
	exit    chan engine.AsyncResult
}

// spawn runs `bash scriptPath` with cwd workDir, merging stdout/stderr
// into a new per-run log file under logDir. The returned process's onExit
// channel receives exactly one AsyncResult: Value holds the process exit
// code (int) on a normal exit, or Err holds a non-exit-related OS error
// (e.g. the process could not be waited on at all).
func spawn(scriptPath, workDir, logDir string) (*process, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	logPath := filepath.Join(logDir, uuid.NewString()+".tmp")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("bash", scriptPath)
	cmd.Dir = workDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, err
	}

	p := &process{cmd: cmd, logFile: logFile, logPath: logPath, exit: make(chan engine.AsyncResult, 1)}
	go p.wait()
	return p, nil
}

func (p *process) wait() {
	err := p.cmd.Wait()
	p.logFile.Close()

	if err == nil {
		p.exit <- engine.AsyncResult{Value: 0}
		return
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		p.exit <- engine.AsyncResult{Value: exitErr.ExitCode()}
		return
	}
	p.exit <- engine.AsyncResult{Err: err}
}

// onExit returns the single-shot future the stage awaits.
func (p *process) onExit() <-chan engine.AsyncResult { return p.exit }

// kill forcefully terminates the process; safe to call after it has
// already exited.
func (p *process) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// streamLog reads the captured log file line-by-line and invokes emit for
// each line, in order. Best-effort: a read error stops streaming early
// rather than failing the stage (the script's own exit code is the
// authoritative outcome).
func streamLog(path string, emit func(line string)) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		emit(scanner.Text())
	}
}
