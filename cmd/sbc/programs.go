package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chazu/sbc/builtins"
	"github.com/chazu/sbc/pkg/bytecode"
	"github.com/chazu/sbc/pkg/image"
	"github.com/chazu/sbc/store"
	"github.com/chazu/sbc/vm"
)

func bytecodeListing(img *image.Image) string {
	return bytecode.DisassembleWithName(img.Code, img.Name)
}

// openStore opens the program store named by -db or the manifest.
func (e *env) openStore(path string) (*store.Store, int) {
	if path == "" {
		path = e.manifest.StorePath()
	}
	st, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return nil, exitIO
	}
	return st, exitOK
}

func cmdPut(e *env, args []string) int {
	fs := newFlagSet(e, "put")
	db := fs.String("db", "", "Program store path")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		fmt.Fprintf(e.stderr, "Usage: sbc put [-db path] <name> <file>\n")
		return exitUsage
	}
	name, path := fs.Arg(0), fs.Arg(1)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitIO
	}
	var img *image.Image
	if image.IsImage(data) {
		img, err = image.Unmarshal(data)
		if err == nil {
			img, err = image.Pack(name, img.Code)
		}
	} else {
		img, err = image.Pack(name, data)
	}
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitMalformed
	}

	st, code := e.openStore(*db)
	if st == nil {
		return code
	}
	defer st.Close()

	if err := st.Put(context.Background(), img); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitIO
	}
	fmt.Fprintf(e.stdout, "%s %s\n", img.Name, hex.EncodeToString(img.Digest[:8]))
	return exitOK
}

func cmdExec(e *env, args []string) int {
	fs := newFlagSet(e, "exec")
	db := fs.String("db", "", "Program store path")
	vf := addVMFlags(fs, e.manifest)
	printResult := fs.Bool("result", false, "Print the value the program yields")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(e.stderr, "Usage: sbc exec [-db path] [-trace] [-conditionals] [-result] <name>\n")
		return exitUsage
	}

	st, code := e.openStore(*db)
	if st == nil {
		return code
	}
	defer st.Close()

	ctx := context.Background()
	img, err := st.Get(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		if errors.Is(err, store.ErrProgramNotFound) {
			return exitUsage
		}
		return exitIO
	}

	machine := e.machine(vf)
	if err := img.CheckBuiltins(machine.Registry()); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitFault
	}

	rec := store.Run{Program: img.Name, StartedAt: time.Now()}
	res, runErr := machine.Run(img.Code)
	rec.FinishedAt = time.Now()
	if runErr != nil {
		rec.Status = store.StatusFault
		rec.Error = runErr.Error()
	} else {
		rec.Status = store.StatusExhausted
		if res.State == vm.StateReturned {
			rec.Status = store.StatusReturned
		}
		rec.Result = builtins.Format(res.Value)
		rec.Steps = res.Steps
	}

	id, err := st.RecordRun(ctx, rec)
	if err != nil {
		log.Errorf("%v", err)
	} else {
		log.Infof("run %s of %s: %s", id, img.Name, rec.Status)
	}

	if runErr != nil {
		return reportFault(e, runErr)
	}
	if *printResult {
		fmt.Fprintf(e.stdout, "%s\n", rec.Result)
	}
	return exitOK
}

func cmdList(e *env, args []string) int {
	fs := newFlagSet(e, "list")
	db := fs.String("db", "", "Program store path")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	st, code := e.openStore(*db)
	if st == nil {
		return code
	}
	defer st.Close()

	programs, err := st.List(context.Background())
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitIO
	}
	for _, p := range programs {
		fmt.Fprintf(e.stdout, "%-20s %6d  %s  %s\n",
			p.Name, p.Size, hex.EncodeToString(p.Digest[:8]), p.CreatedAt.Format(time.RFC3339))
	}
	return exitOK
}

func cmdHistory(e *env, args []string) int {
	fs := newFlagSet(e, "history")
	db := fs.String("db", "", "Program store path")
	limit := fs.Int("n", 10, "Number of runs to show (0 for all)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(e.stderr, "Usage: sbc history [-db path] [-n limit] <name>\n")
		return exitUsage
	}

	st, code := e.openStore(*db)
	if st == nil {
		return code
	}
	defer st.Close()

	runs, err := st.Runs(context.Background(), fs.Arg(0), *limit)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitIO
	}
	for _, r := range runs {
		detail := r.Result
		if r.Status == store.StatusFault {
			detail = r.Error
		}
		fmt.Fprintf(e.stdout, "%s  %s  %-9s %5d steps  %s\n",
			r.ID[:min(len(r.ID), 8)], r.StartedAt.Format(time.RFC3339), r.Status, r.Steps, detail)
	}
	return exitOK
}
