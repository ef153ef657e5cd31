package main

import (
	"context"
	"fmt"

	"github.com/antgroup/forgecore/pkg/repo"
)

type mergeRehearsalCmd struct {
	Repo   string `arg:"" name:"repo" help:"Path to the repository" type:"path"`
	Source string `arg:"" name:"source" help:"Source branch name"`
	Target string `arg:"" name:"target" help:"Target branch name"`
}

func (c *mergeRehearsalCmd) Run(g *Globals) error {
	r, err := repo.Open(c.Repo)
	if err != nil {
		return fmt.Errorf("forgectl merge-rehearsal: %w", err)
	}
	defer r.Close()

	report, err := r.CheckMergeability(context.Background(), c.Source, c.Target)
	if err != nil {
		return fmt.Errorf("forgectl merge-rehearsal: %w", err)
	}

	fmt.Printf("%s is %d ahead, %d behind %s\n", c.Source, report.AheadBy, report.BehindBy, c.Target)
	if report.CanMerge {
		fmt.Println(colorize("green", "clean merge"))
		return nil
	}
	fmt.Println(colorize("red", fmt.Sprintf("%d conflicting path(s)", len(report.Conflicts))))
	for _, cf := range report.Conflicts {
		fmt.Printf("  %s: %s\n", cf.Path, cf.Kind)
	}
	return nil
}
