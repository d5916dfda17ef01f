package commands

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// chdirTemp switches the process into a fresh temp directory for the
// duration of the test, so commands that default data_root to
// "./modcore_data" don't write into the repo tree.
func chdirTemp(t *testing.T) {
	t.Helper()
	original, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(original) })
}

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func newTestRoot(t *testing.T) *cobra.Command {
	t.Helper()
	root := &cobra.Command{Use: "modcore"}
	root.PersistentFlags().StringP("config", "c", "", "path to modcore.yaml")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	root.AddCommand(NewListCommand())
	root.AddCommand(NewLoadCommand())
	root.AddCommand(NewRunCommand())
	root.AddCommand(NewServeCommand())
	root.AddCommand(NewStatusCommand())
	root.AddCommand(NewTaskCommand())
	root.AddCommand(NewVersionCommand("test"))
	return root
}

func TestVersionCommand_PrintsVersion(t *testing.T) {
	root := newTestRoot(t)
	out, err := executeCommand(root, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if out == "" {
		t.Fatalf("expected version output")
	}
}

func TestListCommand_ReportsRegisteredDescriptors(t *testing.T) {
	root := newTestRoot(t)
	out, err := executeCommand(root, "list")
	if err != nil {
		t.Fatalf("list command error = %v", err)
	}
	if out == "" {
		t.Fatalf("expected list output")
	}
}

func TestLoadCommand_LoadsDemoCounter(t *testing.T) {
	chdirTemp(t)
	root := newTestRoot(t)
	out, err := executeCommand(root, "load", "demo.counter")
	if err != nil {
		t.Fatalf("load command error = %v, out = %s", err, out)
	}
}

func TestLoadCommand_UnknownModuleFails(t *testing.T) {
	chdirTemp(t)
	root := newTestRoot(t)
	_, err := executeCommand(root, "load", "does.not.exist")
	if err == nil {
		t.Fatalf("expected error loading unknown module")
	}
}

func TestRunCommand_LoadsThenRunsDemoCounter(t *testing.T) {
	chdirTemp(t)
	root := newTestRoot(t)
	out, err := executeCommand(root, "run", "demo.counter", "--payload", `{"reset":true}`)
	if err != nil {
		t.Fatalf("run command error = %v, out = %s", err, out)
	}
}

func TestRunCommand_UnknownModuleFails(t *testing.T) {
	chdirTemp(t)
	root := newTestRoot(t)
	_, err := executeCommand(root, "run", "does.not.exist")
	if err == nil {
		t.Fatalf("expected error running unknown module")
	}
}

func TestStatusCommand_ReportsOK(t *testing.T) {
	chdirTemp(t)
	root := newTestRoot(t)
	out, err := executeCommand(root, "status")
	if err != nil {
		t.Fatalf("status command error = %v, out = %s", err, out)
	}
}

func TestTaskRunCommand_ExecutesDiagnosticTask(t *testing.T) {
	chdirTemp(t)
	root := newTestRoot(t)
	out, err := executeCommand(root, "task", "run", "smoke")
	if err != nil {
		t.Fatalf("task run command error = %v, out = %s", err, out)
	}
}

func TestServeCommand_TicksUntilContextCancelled(t *testing.T) {
	chdirTemp(t)
	root := newTestRoot(t)
	root.SetArgs([]string{"serve"})

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)

	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("serve command error = %v, out = %s", err, buf.String())
	}
}

func TestTaskStatsCommand_PrintsStats(t *testing.T) {
	chdirTemp(t)
	root := newTestRoot(t)
	out, err := executeCommand(root, "task", "stats")
	if err != nil {
		t.Fatalf("task stats command error = %v", err)
	}
	if out == "" {
		t.Fatalf("expected stats output")
	}
}
