package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/antgroup/forgecore/modules/graph"
	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/pkg/repo"
)

type logCmd struct {
	Repo string `arg:"" name:"repo" help:"Path to the repository" type:"path"`
	Ref  string `arg:"" name:"ref" help:"Branch name or commit hash to start from"`
	N    int    `name:"n" short:"n" default:"20" help:"Maximum number of commits to print"`
}

func (c *logCmd) Run(g *Globals) error {
	r, err := repo.Open(c.Repo)
	if err != nil {
		return fmt.Errorf("forgectl log: %w", err)
	}
	defer r.Close()

	start, err := r.ResolveRef(c.Ref)
	if err != nil {
		return fmt.Errorf("forgectl log: %w", err)
	}

	printed := 0
	for oid := range graph.Ancestors(context.Background(), r.Database(), start) {
		if printed >= c.N {
			break
		}
		commit, err := r.Database().Commit(oid)
		if err != nil {
			return fmt.Errorf("forgectl log: %w", err)
		}
		var sig object.Signature
		sig.Decode([]byte(commit.Author))
		subject, _, _ := strings.Cut(commit.Message, "\n")
		fmt.Printf("%s %s %s\n", colorize("yellow", oid.Prefix()), sig.Name, subject)
		printed++
	}
	return nil
}
