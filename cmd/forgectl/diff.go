package main

import (
	"fmt"

	"github.com/antgroup/forgecore/modules/plumbing"
	"github.com/antgroup/forgecore/pkg/repo"
)

type diffCmd struct {
	Repo string `arg:"" name:"repo" help:"Path to the repository" type:"path"`
	Base string `arg:"" name:"base" help:"Base commit hash"`
	Head string `arg:"" name:"head" help:"Head commit hash"`
}

func (c *diffCmd) Run(g *Globals) error {
	r, err := repo.Open(c.Repo)
	if err != nil {
		return fmt.Errorf("forgectl diff: %w", err)
	}
	defer r.Close()

	base, err := plumbing.NewHashEx(c.Base)
	if err != nil {
		return fmt.Errorf("forgectl diff: bad base hash: %w", err)
	}
	head, err := plumbing.NewHashEx(c.Head)
	if err != nil {
		return fmt.Errorf("forgectl diff: bad head hash: %w", err)
	}

	diffs, err := r.DiffCommits(base, head)
	if err != nil {
		return fmt.Errorf("forgectl diff: %w", err)
	}
	if len(diffs) == 0 {
		fmt.Println("no differences")
		return nil
	}
	for _, d := range diffs {
		switch {
		case d.IsBinary:
			fmt.Printf("Binary files differ: %s\n", d.Path)
		case d.From == nil:
			fmt.Printf("--- /dev/null\n+++ b/%s\n", d.Path)
			fmt.Println(d.Unified.String())
		case d.To == nil:
			fmt.Printf("--- a/%s\n+++ /dev/null\n", d.Path)
			fmt.Println(d.Unified.String())
		default:
			fmt.Printf("--- a/%s\n+++ b/%s\n", d.Path, d.Path)
			fmt.Println(d.Unified.String())
		}
	}
	return nil
}
