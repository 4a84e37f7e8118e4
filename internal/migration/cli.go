package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
)

// Commands lists the subcommands understood by CLI.Run.
var Commands = []string{"up", "down", "down-all", "steps", "goto", "force", "version", "status", "info"}

// CLI renders migration operations for a terminal.
type CLI struct {
	migrator Migrator
	output   io.Writer
}

// NewCLI creates a CLI writing to stdout.
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

// SetOutput sets the output writer for CLI messages
func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

// Run dispatches a subcommand. steps, goto and force take one integer
// argument.
func (c *CLI) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "up":
		fmt.Fprintln(c.output, "Running migrations...")
		return c.after(ctx, "Migrations complete", c.migrator.Up(ctx))
	case "down":
		fmt.Fprintln(c.output, "Rolling back last migration...")
		return c.after(ctx, "Rollback complete", c.migrator.Down(ctx))
	case "down-all":
		fmt.Fprintln(c.output, "Rolling back all migrations...")
		return c.after(ctx, "Rollback complete", c.migrator.DownAll(ctx))
	case "steps":
		n, err := intArg(command, args)
		if err != nil {
			return err
		}
		return c.after(ctx, "Complete", c.migrator.Steps(ctx, n))
	case "goto":
		n, err := intArg(command, args)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("goto: version must not be negative")
		}
		return c.after(ctx, "Migration complete", c.migrator.Goto(ctx, uint(n)))
	case "force":
		n, err := intArg(command, args)
		if err != nil {
			return err
		}
		if err := c.migrator.Force(ctx, n); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
		fmt.Fprintf(c.output, "Version forced to %d\n", n)
		return nil
	case "version":
		return c.printVersion(ctx)
	case "status":
		return c.printStatus(ctx)
	case "info":
		return c.printInfo(ctx)
	default:
		return fmt.Errorf("unknown migrate command %q (valid: %v)", command, Commands)
	}
}

func (c *CLI) after(ctx context.Context, label string, opErr error) error {
	if opErr != nil {
		return opErr
	}
	version, _, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "%s. Current version: %d\n", label, version)
	return nil
}

func (c *CLI) printVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if version == 0 {
		fmt.Fprintln(c.output, "No migrations applied yet.")
		return nil
	}
	fmt.Fprintf(c.output, "Current version: %d", version)
	if dirty {
		fmt.Fprint(c.output, " (dirty)")
	}
	fmt.Fprintln(c.output)
	return nil
}

func (c *CLI) printStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.output, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	applied := 0
	for _, s := range statuses {
		status := "Pending"
		switch {
		case s.Dirty:
			status = "Dirty"
		case s.Applied:
			status = "Applied"
		}
		if s.Applied {
			applied++
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.output, "\nTotal: %d, Applied: %d, Pending: %d\n",
		len(statuses), applied, len(statuses)-applied)
	return nil
}

func (c *CLI) printInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get info: %w", err)
	}
	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Migration Information:")
	fmt.Fprintf(w, "  Current Version:\t%d\n", info.CurrentVersion)
	fmt.Fprintf(w, "  Dirty:\t%v\n", info.Dirty)
	fmt.Fprintf(w, "  Total Migrations:\t%d\n", info.TotalMigrations)
	fmt.Fprintf(w, "  Applied Migrations:\t%d\n", info.AppliedMigrations)
	fmt.Fprintf(w, "  Pending Migrations:\t%d\n", info.PendingMigrations)
	return w.Flush()
}

func intArg(command string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s: expected exactly one integer argument", command)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", command, args[0])
	}
	return n, nil
}
