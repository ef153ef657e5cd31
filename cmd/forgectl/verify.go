package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/antgroup/forgecore/modules/odb"
	"github.com/antgroup/forgecore/modules/plumbing"
)

type verifyCmd struct {
	Repo string `arg:"" name:"repo" help:"Path to the repository (the directory containing objects/)" type:"path"`
}

func colorize(code, s string) string {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return s
	}
	return ansi.Color(s, code)
}

// badObject records a loose object that failed verifyOne, together with the
// error verifyOne returned for it.
type badObject struct {
	oid plumbing.Hash
	err error
}

func verifyOne(fs *odb.FilesystemStorage, oid plumbing.Hash) error {
	rc, err := fs.Open(oid)
	if err != nil {
		return err
	}
	defer rc.Close()
	r, err := odb.NewObjectReadCloser(rc)
	if err != nil {
		return err
	}
	defer r.Close()
	typ, size, err := r.Header()
	if err != nil {
		return err
	}
	hasher := plumbing.NewHasher()
	if _, err := fmt.Fprintf(hasher, "%s %d\x00", typ, size); err != nil {
		return err
	}
	if _, err := io.Copy(hasher, r); err != nil {
		return err
	}
	if got := hasher.Sum(); got != oid {
		return fmt.Errorf("hash mismatch: stored under %s, recomputed %s", oid, got)
	}
	return nil
}

func (c *verifyCmd) Run(g *Globals) error {
	objectsDir := filepath.Join(c.Repo, "objects")
	fs := odb.NewFilesystemStorage(objectsDir)
	hashes, err := fs.LooseObjects()
	if err != nil {
		return fmt.Errorf("forgectl verify: listing loose objects: %w", err)
	}

	var bar *mpb.Bar
	var p *mpb.Progress
	if !g.Quiet {
		p = mpb.New(mpb.WithOutput(os.Stderr), mpb.WithAutoRefresh())
		bar = p.New(int64(len(hashes)),
			mpb.BarStyle().Filler("#").Padding(" "),
			mpb.PrependDecorators(decor.Name("verifying objects", decor.WC{W: len("verifying objects"), C: decor.DindentRight})),
			mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
		)
	}

	var bad []badObject
	for _, oid := range hashes {
		if err := verifyOne(fs, oid); err != nil {
			bad = append(bad, badObject{oid: oid, err: err})
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if p != nil {
		p.Wait()
	}

	fmt.Printf("checked %d loose object(s)\n", len(hashes))
	if len(bad) == 0 {
		fmt.Println(colorize("green", "ok"))
		return nil
	}
	for _, b := range bad {
		fmt.Printf("%s %s: %v\n", colorize("red", "corrupt"), b.oid, b.err)
	}
	return fmt.Errorf("%d corrupt object(s)", len(bad))
}
