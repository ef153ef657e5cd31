// Command forgectl is a small operator CLI over pkg/repo: fsck-style object
// verification, commit-to-commit diffing, merge rehearsal, and branch log
// walking, all against a single bare repository given on the command line.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/antgroup/forgecore/pkg/version"
)

type versionFlag bool

func (v versionFlag) Decode(ctx *kong.DecodeContext) error { return nil }
func (v versionFlag) IsBool() bool                         { return true }
func (v versionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(version.GetVersionString())
	app.Exit(0)
	return nil
}

// Globals are shared flags every subcommand embeds.
type Globals struct {
	Verbose bool        `short:"V" name:"verbose" help:"Make the operation more talkative"`
	Quiet   bool        `short:"q" name:"quiet" help:"Suppress progress output"`
	Version versionFlag `short:"v" name:"version" help:"Show version number and quit"`
}

type app struct {
	Globals

	Verify         verifyCmd         `cmd:"" help:"Walk a repository's loose objects, recomputing and checking every hash"`
	Diff           diffCmd           `cmd:"" help:"Show the unified diff between two commits"`
	MergeRehearsal mergeRehearsalCmd `cmd:"" name:"merge-rehearsal" help:"Check whether a branch would merge cleanly, without writing anything"`
	Log            logCmd            `cmd:"" help:"Walk a branch's ancestry, newest first"`
}

func main() {
	var a app
	parser := kong.Must(&a,
		kong.Name("forgectl"),
		kong.Description("forgectl - operator tooling for a forgecore object store"),
		kong.UsageOnError(),
	)
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	if err := ctx.Run(&a.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "forgectl: %v\n", err)
		os.Exit(1)
	}
}
